package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/session"
	"github.com/roach88/fablekeep/internal/store"
	"github.com/roach88/fablekeep/internal/timeline"
)

// Options wires an App. Zero values pick production defaults: the system
// clock, UUIDv7 session ids, a randomly seeded shuffle and slog.Default().
type Options struct {
	// Medium holds local state. Required.
	Medium store.Medium
	// Scenes is the scene collection. Nil means no scenes.
	Scenes *scene.Collection
	// Role selects solo (student) or teacher behavior. Empty means student.
	Role backup.Role
	// Remote is the backup store. Nil disables backup.
	Remote backup.Remote
	// AppID tags remote records. Empty uses backup.DefaultAppID.
	AppID string
	// Debounce is the autosave quiet period. Zero uses the backup default.
	Debounce time.Duration

	Clock clock.Clock
	// Scheduler times autosave quiet periods. Nil uses real timers.
	Scheduler clock.Scheduler
	IDs       session.IDGenerator
	Rand   *rand.Rand
	Logger *slog.Logger
}

// App is the application shell.
type App struct {
	role   backup.Role
	medium store.Medium
	remote backup.Remote
	clock  clock.Clock
	logger *slog.Logger

	store     *store.Store
	scenes    *scene.Collection
	timeline  *timeline.Engine
	solo      *gameplay.Snapshot
	sessions  *session.Registry
	backup    *backup.Service
	autosaver *backup.Autosaver

	pending *backup.Decision
}

// New builds an App and loads the persisted solo snapshot and session
// registry.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Medium == nil {
		return nil, errors.New("app: medium is required")
	}
	role := opts.Role
	if role == "" {
		role = backup.Student
	}
	if !role.Valid() {
		return nil, fmt.Errorf("app: unknown role %q", role)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	a := &App{
		role:   role,
		medium: opts.Medium,
		remote: opts.Remote,
		clock:  clk,
		logger: logger,
		store:  store.New(opts.Medium, logger),
		scenes: opts.Scenes,
		solo:   gameplay.NewSnapshot(),
	}
	if a.scenes == nil {
		a.scenes = &scene.Collection{}
	}

	engineOpts := []timeline.Option{timeline.WithClock(clk), timeline.WithLogger(logger)}
	if opts.Rand != nil {
		engineOpts = append(engineOpts, timeline.WithRand(opts.Rand))
	}
	a.timeline = timeline.New(a.store, engineOpts...)

	registryOpts := []session.Option{session.WithClock(clk), session.WithLogger(logger)}
	if opts.IDs != nil {
		registryOpts = append(registryOpts, session.WithIDGenerator(opts.IDs))
	}
	a.sessions = session.NewRegistry(a.store, registryOpts...)

	if opts.Remote != nil {
		a.backup = backup.NewService(opts.Remote,
			backup.WithAppID(opts.AppID),
			backup.WithMetaStore(a.store),
			backup.WithClock(clk),
			backup.WithLogger(logger),
		)
		var saveOpts []backup.AutosaveOption
		if opts.Scheduler != nil {
			saveOpts = append(saveOpts, backup.WithScheduler(opts.Scheduler))
		}
		a.autosaver = backup.NewAutosaver(a.backup, opts.Debounce, logger, saveOpts...)
	}

	a.loadSolo(ctx)
	a.sessions.Load(ctx)
	return a, nil
}

func (a *App) loadSolo(ctx context.Context) {
	data, ok := a.store.Read(ctx, store.KeyGameplay)
	if !ok {
		return
	}
	report, err := a.solo.Load(data)
	if err != nil {
		a.logger.Warn("unable to read saved gameplay", "error", err)
		return
	}
	if report.Outcome() != gameplay.Valid {
		a.logger.Info("saved gameplay repaired on load", "outcome", report.Outcome().String())
	}
}

// Role returns the configured role.
func (a *App) Role() backup.Role {
	return a.role
}

// Store returns the local key/value store.
func (a *App) Store() *store.Store {
	return a.store
}

// Scenes returns the scene collection.
func (a *App) Scenes() *scene.Collection {
	return a.scenes
}

// Sessions returns the session registry. Callers changing session content
// should prefer the App methods, which also schedule autosave.
func (a *App) Sessions() *session.Registry {
	return a.sessions
}

// Timeline returns the timeline engine for the scene last opened with
// TimelineFor.
func (a *App) Timeline() *timeline.Engine {
	return a.timeline
}

// BackupEnabled reports whether a remote is configured.
func (a *App) BackupEnabled() bool {
	return a.backup != nil
}

// Close flushes any pending autosave, then releases the medium and the
// remote.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.autosaver != nil {
		if err := a.autosaver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush autosave: %w", err))
		}
	}
	if c, ok := a.remote.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close remote: %w", err))
		}
	}
	if c, ok := a.medium.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// TimelineFor prepares the timeline engine for sceneID, restoring saved
// progress. In teacher mode a scene the active session has never visited
// is marked started.
func (a *App) TimelineFor(ctx context.Context, sceneID string) (*timeline.Engine, error) {
	sc := a.scenes.Get(sceneID)
	if sc == nil {
		return nil, fmt.Errorf("scene %q: %w", sceneID, ErrUnknownScene)
	}
	if cur := a.timeline.Scene(); cur == nil || cur.ID != sceneID {
		a.timeline.Prepare(ctx, sc)
	}

	if a.role == backup.Teacher {
		if s, ok := a.sessions.Active(); ok && s.SceneProgress[sceneID] == session.NoStatus {
			if err := a.sessions.SetSceneStatus(ctx, s.ID, sceneID, session.Started); err != nil {
				return nil, err
			}
			a.scheduleSession(s.ID)
		}
	}
	return a.timeline, nil
}
