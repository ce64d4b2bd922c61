package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/store"
)

// Persister is the subset of store.Store the registry needs.
type Persister interface {
	Read(ctx context.Context, key string) ([]byte, bool)
	Write(ctx context.Context, key string, value []byte, preserveSceneID string) bool
}

// Registry holds every session and the active-session pointer.
//
// Reads return copies; callers change sessions only through Registry
// methods so that UpdatedAt and persistence are never skipped.
//
// Thread-safety: not safe for concurrent use.
type Registry struct {
	persist Persister
	ids     IDGenerator
	clock   clock.Clock
	logger  *slog.Logger

	sessions []*Session
	activeID string
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator sets the session id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.ids = g }
}

// WithClock sets the clock used for CreatedAt and UpdatedAt.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry. persist may be nil to keep the
// registry in memory only.
func NewRegistry(persist Persister, opts ...Option) *Registry {
	r := &Registry{
		persist: persist,
		ids:     UUIDv7Generator{},
		clock:   clock.System{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory registry with the stored one. A missing
// record leaves the registry empty; a corrupt record is logged and ignored.
func (r *Registry) Load(ctx context.Context) {
	r.sessions = nil
	r.activeID = ""
	if r.persist == nil {
		return
	}
	data, ok := r.persist.Read(ctx, store.KeySessions)
	if !ok {
		return
	}
	sessions, activeID, err := Decode(data, r.clock.Now(), r.logger)
	if err != nil {
		r.logger.Warn("unable to read saved sessions", "error", err)
		return
	}
	r.sessions = sessions
	r.activeID = activeID
}

// Create adds a session with a fresh id and the default roster. It does not
// change the active session.
func (r *Registry) Create(ctx context.Context, name string) *Session {
	now := r.clock.Now()
	s := &Session{
		ID:            r.ids.Generate(),
		Name:          sanitizeName(name),
		CreatedAt:     now,
		UpdatedAt:     now,
		Gameplay:      gameplay.NewSnapshot(),
		SceneProgress: map[string]SceneStatus{},
		SleepCards:    []SleepCard{},
		LostCards:     []LostCard{},
	}
	r.sessions = append(r.sessions, s)
	r.save(ctx)
	return s.Clone()
}

// Delete removes the session. Reports false when id is unknown.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.sessions = slices.Delete(r.sessions, i, i+1)
	if r.activeID == id {
		r.activeID = ""
	}
	r.save(ctx)
	return true
}

// Select makes id the active session.
func (r *Registry) Select(ctx context.Context, id string) error {
	if r.index(id) < 0 {
		return fmt.Errorf("select %q: %w", id, ErrNotFound)
	}
	r.activeID = id
	r.save(ctx)
	return nil
}

// Deselect clears the active pointer.
func (r *Registry) Deselect(ctx context.Context) {
	if r.activeID == "" {
		return
	}
	r.activeID = ""
	r.save(ctx)
}

// ActiveID returns the active session id, or "".
func (r *Registry) ActiveID() string {
	return r.activeID
}

// Active returns a copy of the active session.
func (r *Registry) Active() (*Session, bool) {
	if r.activeID == "" {
		return nil, false
	}
	return r.Get(r.activeID)
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (*Session, bool) {
	i := r.index(id)
	if i < 0 {
		return nil, false
	}
	return r.sessions[i].Clone(), true
}

// List returns copies of every session in creation order.
func (r *Registry) List() []*Session {
	out := make([]*Session, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Rename changes a session's name. A blank name becomes the default name.
func (r *Registry) Rename(ctx context.Context, id, name string) error {
	return r.mutate(ctx, id, func(s *Session) error {
		s.Name = sanitizeName(name)
		return nil
	})
}

// SetSceneStatus records a scene's progress. Starting a scene demotes any
// other started scene to finished; NoStatus forgets the scene.
func (r *Registry) SetSceneStatus(ctx context.Context, id, sceneID string, status SceneStatus) error {
	if status != NoStatus && status != Started && status != Finished {
		return fmt.Errorf("scene status %q: %w", status, ErrInvalidStatus)
	}
	return r.mutate(ctx, id, func(s *Session) error {
		s.setSceneStatus(sceneID, status)
		return nil
	})
}

// UpdateGameplay stores a copy of snap as the session's gameplay.
func (r *Registry) UpdateGameplay(ctx context.Context, id string, snap *gameplay.Snapshot) error {
	return r.mutate(ctx, id, func(s *Session) error {
		s.Gameplay = snap.Clone()
		return nil
	})
}

// AddSleepCard appends a card to the sleep log with status sleeping.
func (r *Registry) AddSleepCard(ctx context.Context, id, cardID string) error {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return ErrInvalidCard
	}
	return r.mutate(ctx, id, func(s *Session) error {
		if slices.ContainsFunc(s.SleepCards, func(c SleepCard) bool { return c.ID == cardID }) {
			return fmt.Errorf("sleep card %q: %w", cardID, ErrCardExists)
		}
		s.SleepCards = append(s.SleepCards, SleepCard{ID: cardID, Status: Sleeping})
		return nil
	})
}

// SetSleepCardStatus changes the status of a card in the sleep log.
func (r *Registry) SetSleepCardStatus(ctx context.Context, id, cardID string, status SleepStatus) error {
	if !status.Valid() {
		return fmt.Errorf("sleep status %q: %w", status, ErrInvalidStatus)
	}
	return r.mutate(ctx, id, func(s *Session) error {
		i := slices.IndexFunc(s.SleepCards, func(c SleepCard) bool { return c.ID == cardID })
		if i < 0 {
			return fmt.Errorf("sleep card %q: %w", cardID, ErrCardNotFound)
		}
		s.SleepCards[i].Status = status
		return nil
	})
}

// RemoveSleepCard deletes a card from the sleep log.
func (r *Registry) RemoveSleepCard(ctx context.Context, id, cardID string) error {
	return r.mutate(ctx, id, func(s *Session) error {
		i := slices.IndexFunc(s.SleepCards, func(c SleepCard) bool { return c.ID == cardID })
		if i < 0 {
			return fmt.Errorf("sleep card %q: %w", cardID, ErrCardNotFound)
		}
		s.SleepCards = slices.Delete(s.SleepCards, i, i+1)
		return nil
	})
}

// AddLostCard appends a card to the lost log.
func (r *Registry) AddLostCard(ctx context.Context, id, cardID, name string) error {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return ErrInvalidCard
	}
	return r.mutate(ctx, id, func(s *Session) error {
		if slices.ContainsFunc(s.LostCards, func(c LostCard) bool { return c.ID == cardID }) {
			return fmt.Errorf("lost card %q: %w", cardID, ErrCardExists)
		}
		s.LostCards = append(s.LostCards, LostCard{ID: cardID, Name: strings.TrimSpace(name)})
		return nil
	})
}

// RemoveLostCard deletes a card from the lost log.
func (r *Registry) RemoveLostCard(ctx context.Context, id, cardID string) error {
	return r.mutate(ctx, id, func(s *Session) error {
		i := slices.IndexFunc(s.LostCards, func(c LostCard) bool { return c.ID == cardID })
		if i < 0 {
			return fmt.Errorf("lost card %q: %w", cardID, ErrCardNotFound)
		}
		s.LostCards = slices.Delete(s.LostCards, i, i+1)
		return nil
	})
}

// Put inserts s, or replaces the session with the same id, keeping its
// position. Used when a session arrives from an import or a backup; s keeps
// its own timestamps.
func (r *Registry) Put(ctx context.Context, s *Session) {
	s = s.Clone()
	if s.Gameplay == nil {
		s.Gameplay = gameplay.NewSnapshot()
	}
	if i := r.index(s.ID); i >= 0 {
		r.sessions[i] = s
	} else {
		r.sessions = append(r.sessions, s)
	}
	r.save(ctx)
}

// mutate runs fn on the live session, then stamps and persists it. Nothing
// is stamped or saved when fn fails.
func (r *Registry) mutate(ctx context.Context, id string, fn func(*Session) error) error {
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	s := r.sessions[i]
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = r.clock.Now()
	r.save(ctx)
	return nil
}

func (r *Registry) index(id string) int {
	return slices.IndexFunc(r.sessions, func(s *Session) bool { return s.ID == id })
}

func (r *Registry) save(ctx context.Context) {
	if r.persist == nil {
		return
	}
	data, err := Encode(r.sessions, r.activeID)
	if err != nil {
		r.logger.Warn("unable to encode sessions", "error", err)
		return
	}
	if !r.persist.Write(ctx, store.KeySessions, data, "") {
		r.logger.Warn("unable to persist sessions", "count", len(r.sessions))
	}
}
