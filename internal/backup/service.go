package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/store"
)

// DefaultAppID tags every record written by fablekeep.
const DefaultAppID = "fablekeep"

// timeLayout is RFC 3339 with fixed millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// MetaStore is the subset of store.Store used to remember slot metadata.
type MetaStore interface {
	Read(ctx context.Context, key string) ([]byte, bool)
	Write(ctx context.Context, key string, value []byte, preserveSceneID string) bool
}

// SlotMeta is what the device remembers about its last push to a slot.
type SlotMeta struct {
	FileID     string    `json:"fileId"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Service pushes, pulls and reconciles backup slots.
type Service struct {
	remote Remote
	appID  string
	meta   MetaStore
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAppID sets the application tag. Empty keeps DefaultAppID.
func WithAppID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.appID = id
		}
	}
}

// WithMetaStore sets where slot metadata is recorded.
func WithMetaStore(m MetaStore) Option {
	return func(s *Service) { s.meta = m }
}

// WithClock sets the clock stamping pushed records.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service over remote.
func NewService(remote Remote, opts ...Option) *Service {
	s := &Service{
		remote: remote,
		appID:  DefaultAppID,
		clock:  clock.System{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) tags(slot Slot, role Role, key string) Tags {
	return Tags{AppID: s.appID, Role: role, Slot: slot, SessionKey: key}
}

// Push writes payload to a slot, replacing the slot's existing record or
// creating one, and records the server timestamp locally. payload is any
// JSON-encodable value.
func (s *Service) Push(ctx context.Context, slot Slot, role Role, key string, payload any) (File, error) {
	if !slot.Valid() {
		return File{}, fmt.Errorf("push %q: %w", slot, ErrUnknownSlot)
	}
	body, err := canon.Marshal(map[string]any{
		"updatedAt": s.clock.Now().UTC().Format(timeLayout),
		"data":      payload,
	})
	if err != nil {
		return File{}, fmt.Errorf("push %s: encode payload: %w", slot, err)
	}

	tags := s.tags(slot, role, key)
	existing, found, err := s.remote.Find(ctx, tags)
	if err != nil {
		return File{}, &RemoteError{Op: "find", Slot: slot, Err: err}
	}
	var file File
	if found {
		file, err = s.remote.Update(ctx, existing.ID, body)
		if err != nil {
			return File{}, &RemoteError{Op: "update", Slot: slot, Err: err}
		}
	} else {
		file, err = s.remote.Create(ctx, tags, body)
		if err != nil {
			return File{}, &RemoteError{Op: "create", Slot: slot, Err: err}
		}
	}

	s.recordMeta(ctx, role, key, slot, SlotMeta{FileID: file.ID, ModifiedAt: file.ModifiedAt})
	s.logger.Debug("backup pushed", "slot", slot, "role", role, "session", key, "file", file.ID)
	return file, nil
}

// Pull reads a slot. ok is false when the slot has no record.
func (s *Service) Pull(ctx context.Context, slot Slot, role Role, key string) (*Record, bool, error) {
	if !slot.Valid() {
		return nil, false, fmt.Errorf("pull %q: %w", slot, ErrUnknownSlot)
	}
	file, found, err := s.remote.Find(ctx, s.tags(slot, role, key))
	if err != nil {
		return nil, false, &RemoteError{Op: "find", Slot: slot, Err: err}
	}
	if !found {
		return nil, false, nil
	}
	body, err := s.remote.Get(ctx, file.ID)
	if err != nil {
		return nil, false, &RemoteError{Op: "get", Slot: slot, Err: err}
	}
	rec, err := decodeRecord(slot, body)
	if err != nil {
		return nil, false, err
	}
	rec.ModifiedAt = file.ModifiedAt
	return rec, true, nil
}

// decodeRecord parses {"updatedAt": ..., "data": ...}.
func decodeRecord(slot Slot, body []byte) (*Record, error) {
	tree, err := canon.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", slot, ErrMalformedRecord, err)
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w: expected object", slot, ErrMalformedRecord)
	}
	data, ok := obj["data"]
	if !ok || data == nil {
		return nil, fmt.Errorf("%s: %w: missing data", slot, ErrMalformedRecord)
	}
	rec := &Record{Slot: slot, Data: data}
	if ts, ok := obj["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.UpdatedAt = t.UTC()
		}
	}
	return rec, nil
}

// ReconcileLoad fetches both slots concurrently and decides which one to
// load.
//
// Neither slot present gives ErrNothingToLoad. A single slot is
// authoritative. Two canonically equal slots resolve to manual. Two
// different slots give an unresolved Decision that the caller must settle
// with Choose. A slot whose body is malformed counts as absent. Any remote
// failure aborts the load.
func (s *Service) ReconcileLoad(ctx context.Context, role Role, key string) (*Decision, error) {
	var autosave, manual *Record
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(slot Slot, dst **Record) {
		g.Go(func() error {
			rec, ok, err := s.Pull(gctx, slot, role, key)
			if err != nil {
				if IsRemoteError(err) {
					return err
				}
				s.logger.Warn("ignoring unreadable backup slot", "slot", slot, "session", key, "error", err)
				return nil
			}
			if ok {
				*dst = rec
			}
			return nil
		})
	}
	fetch(Autosave, &autosave)
	fetch(Manual, &manual)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decide(role, key, autosave, manual)
}

func decide(role Role, key string, autosave, manual *Record) (*Decision, error) {
	d := &Decision{Role: role, SessionKey: key, Autosave: autosave, Manual: manual}
	switch {
	case autosave == nil && manual == nil:
		return nil, ErrNothingToLoad
	case autosave == nil:
		d.resolved = manual
	case manual == nil:
		d.resolved = autosave
	default:
		equal, err := canon.Equal(autosave.Data, manual.Data)
		if err != nil {
			return nil, fmt.Errorf("compare backup slots: %w", err)
		}
		if equal {
			d.resolved = manual
		} else {
			d.Differences = DiffPaths(autosave.Data, manual.Data, MaxDiffPaths)
		}
	}
	return d, nil
}

// Meta returns the locally recorded metadata of a slot.
func (s *Service) Meta(ctx context.Context, role Role, key string, slot Slot) (SlotMeta, bool) {
	if s.meta == nil {
		return SlotMeta{}, false
	}
	data, ok := s.meta.Read(ctx, store.BackupMetaKey(string(role), key, string(slot)))
	if !ok {
		return SlotMeta{}, false
	}
	var m SlotMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return SlotMeta{}, false
	}
	return m, true
}

func (s *Service) recordMeta(ctx context.Context, role Role, key string, slot Slot, m SlotMeta) {
	if s.meta == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if !s.meta.Write(ctx, store.BackupMetaKey(string(role), key, string(slot)), data, "") {
		s.logger.Warn("unable to record backup metadata", "slot", slot, "session", key)
	}
}
