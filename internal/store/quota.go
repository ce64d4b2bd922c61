package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
)

// Store is the quota-aware key/value store shared by every component.
//
// Reads and writes never return errors. Failures are logged and reported as
// "absent" or false, matching how a browser treats local storage: a broken
// medium degrades persistence, never the game.
type Store struct {
	medium Medium
	logger *slog.Logger
}

// New wraps a Medium. A nil logger uses slog.Default().
func New(medium Medium, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{medium: medium, logger: logger}
}

// Medium returns the wrapped medium.
func (s *Store) Medium() Medium {
	return s.medium
}

// Read returns the value stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := s.medium.Get(ctx, key)
	if err != nil {
		s.logger.Warn("unable to read stored record", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return []byte(value), true
}

// Write stores value under key.
//
// On a capacity failure the oldest timeline entry is evicted and the write
// retried exactly once. preserveSceneID names a scene whose timeline entry
// must survive the eviction (usually the scene being saved); pass "" when
// nothing needs protecting.
//
// A second failure is not followed by another eviction: a single payload
// larger than the medium would otherwise empty the whole namespace.
func (s *Store) Write(ctx context.Context, key string, value []byte, preserveSceneID string) bool {
	err := s.medium.Set(ctx, key, string(value))
	if err == nil {
		return true
	}

	if !IsQuotaError(err) {
		s.logger.Warn("storage write failed", "key", key, "error", err)
		return false
	}

	if !s.evictOldestTimelineEntry(ctx, preserveSceneID) {
		s.logger.Warn("storage full and nothing evictable", "key", key, "error", err)
		return false
	}

	if err := s.medium.Set(ctx, key, string(value)); err != nil {
		s.logger.Warn("storage write failed after eviction", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key. Reports false if the medium failed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if err := s.medium.Delete(ctx, key); err != nil {
		s.logger.Warn("unable to delete stored record", "key", key, "error", err)
		return false
	}
	return true
}

// Keys lists keys under prefix, or nil if the medium failed.
func (s *Store) Keys(ctx context.Context, prefix string) []string {
	keys, err := s.medium.Keys(ctx, prefix)
	if err != nil {
		s.logger.Warn("unable to list stored records", "prefix", prefix, "error", err)
		return nil
	}
	return keys
}

// EntryLister is implemented by media that report record sizes and write
// times without reading values.
type EntryLister interface {
	Entries(ctx context.Context, prefix string) ([]Entry, error)
}

// Entries lists records under prefix, most recently written first. Media
// without EntryLister are read key by key, in key order, and report a zero
// UpdatedAt. Returns nil if the medium failed.
func (s *Store) Entries(ctx context.Context, prefix string) []Entry {
	if lister, ok := s.medium.(EntryLister); ok {
		entries, err := lister.Entries(ctx, prefix)
		if err != nil {
			s.logger.Warn("unable to list stored records", "prefix", prefix, "error", err)
			return nil
		}
		return entries
	}

	keys, err := s.medium.Keys(ctx, prefix)
	if err != nil {
		s.logger.Warn("unable to list stored records", "prefix", prefix, "error", err)
		return nil
	}
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, ok, err := s.medium.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		entries = append(entries, Entry{Key: key, Size: int64(len(value))})
	}
	return entries
}

// timestampProbe reads only the updatedAt field of a timeline record.
type timestampProbe struct {
	UpdatedAt json.RawMessage `json:"updatedAt"`
}

// evictOldestTimelineEntry removes the timeline entry with the smallest
// updatedAt, skipping excludeSceneID. Entries that are not valid JSON are
// removed first; entries without a numeric updatedAt are never candidates.
func (s *Store) evictOldestTimelineEntry(ctx context.Context, excludeSceneID string) bool {
	keys, err := s.medium.Keys(ctx, TimelinePrefix)
	if err != nil {
		s.logger.Warn("unable to scan timeline entries", "error", err)
		return false
	}

	oldestKey := ""
	oldest := math.Inf(1)

	for _, key := range keys {
		sceneID, _ := SceneIDFromKey(key)
		if sceneID == excludeSceneID {
			continue
		}

		raw, ok, err := s.medium.Get(ctx, key)
		if err != nil || !ok || raw == "" {
			continue
		}

		var probe timestampProbe
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			oldestKey = key
			break
		}

		var ts float64
		if err := json.Unmarshal(probe.UpdatedAt, &ts); err != nil {
			continue
		}
		if ts < oldest {
			oldest = ts
			oldestKey = key
		}
	}

	if oldestKey == "" {
		return false
	}
	if err := s.medium.Delete(ctx, oldestKey); err != nil {
		s.logger.Warn("unable to evict timeline entry", "key", oldestKey, "error", err)
		return false
	}
	s.logger.Info("evicted timeline entry to free storage", "key", oldestKey)
	return true
}
