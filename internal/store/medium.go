package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Medium is a persistent key/value medium with a capacity limit.
//
// Set must return a *QuotaError (possibly wrapped) when the medium cannot
// hold the value; any other error is treated as a plain write failure.
type Medium interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// MemoryMedium is an in-process Medium with the same capacity semantics as
// SQLite: the limit applies to the total bytes of all values, and replacing
// a key only counts the new value.
//
// Thread-safety: safe for concurrent use.
type MemoryMedium struct {
	mu      sync.Mutex
	entries map[string]string
	quota   int64
}

// NewMemoryMedium creates an empty medium. quotaBytes <= 0 means unlimited.
func NewMemoryMedium(quotaBytes int64) *MemoryMedium {
	return &MemoryMedium{entries: make(map[string]string), quota: quotaBytes}
}

// Get implements Medium.
func (m *MemoryMedium) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Set implements Medium.
func (m *MemoryMedium) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		var used int64
		for k, v := range m.entries {
			if k != key {
				used += int64(len(v))
			}
		}
		if used+int64(len(value)) > m.quota {
			return &QuotaError{Key: key, Needed: int64(len(value)), Used: used, Limit: m.quota}
		}
	}
	m.entries[key] = value
	return nil
}

// Delete implements Medium.
func (m *MemoryMedium) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Keys implements Medium. Results are ordered by key.
func (m *MemoryMedium) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries.
func (m *MemoryMedium) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
