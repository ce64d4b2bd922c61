package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fablekeep/internal/clock"
)

// DefaultAutosaveDelay is the quiet period before an autosave push.
const DefaultAutosaveDelay = 2 * time.Second

// defaultPushTimeout bounds a background push.
const defaultPushTimeout = 30 * time.Second

// Autosaver debounces pushes to the autosave slot.
//
// Schedule resets the quiet period on every call, so only the latest
// payload of a burst of mutations is pushed. Pushes run in the background and never
// block the caller; failures are logged. A push already in flight is not
// cancelled by a newer Schedule, so remote writes may land out of order;
// the next quiet period overwrites them.
//
// Thread-safety: safe for concurrent use.
type Autosaver struct {
	service   *Service
	delay     time.Duration
	logger    *slog.Logger
	scheduler clock.Scheduler

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64 // bumped per Schedule; a callback from an older one is stale
	pending *autosaveJob
	closed  bool
	wg      sync.WaitGroup
}

// AutosaveOption configures an Autosaver.
type AutosaveOption func(*Autosaver)

// WithScheduler sets the scheduler that times quiet periods.
func WithScheduler(s clock.Scheduler) AutosaveOption {
	return func(a *Autosaver) {
		a.scheduler = s
	}
}

type autosaveJob struct {
	role    Role
	key     string
	payload any
}

// NewAutosaver creates an autosaver pushing through service. A non-positive
// delay uses DefaultAutosaveDelay.
func NewAutosaver(service *Service, delay time.Duration, logger *slog.Logger, opts ...AutosaveOption) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Autosaver{service: service, delay: delay, logger: logger, scheduler: clock.System{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schedule queues payload for the autosave slot of (role, key) and restarts
// the quiet period. A pending payload for a different record is pushed
// right away instead of being dropped. payload must not be mutated after
// the call.
func (a *Autosaver) Schedule(role Role, key string, payload any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.pending != nil && (a.pending.role != role || a.pending.key != key) {
		a.startPush(a.pending)
	}
	a.pending = &autosaveJob{role: role, key: key, payload: payload}
	a.stopTimer()
	a.gen++
	gen := a.gen
	a.timer = a.scheduler.AfterFunc(a.delay, func() { a.fire(gen) })
}

// Pending reports whether a payload is waiting for its quiet period.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// fire pushes the pending payload when gen is still the latest Schedule.
// A callback that lost the race with a newer Schedule returns without
// pushing, leaving the newer quiet period to run out.
func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.pending == nil || a.closed {
		return
	}
	a.timer = nil
	a.startPush(a.pending)
	a.pending = nil
}

// stopTimer cancels the quiet period. Callers hold a.mu.
func (a *Autosaver) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// takePending stops the quiet period and hands back the pending job.
// Callers hold a.mu.
func (a *Autosaver) takePending() *autosaveJob {
	a.stopTimer()
	job := a.pending
	a.pending = nil
	return job
}

// startPush runs job on its own goroutine. Callers hold a.mu.
func (a *Autosaver) startPush(job *autosaveJob) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultPushTimeout)
		defer cancel()
		a.push(ctx, job)
	}()
}

func (a *Autosaver) push(ctx context.Context, job *autosaveJob) error {
	_, err := a.service.Push(ctx, Autosave, job.role, job.key, job.payload)
	if err != nil {
		a.logger.Warn("autosave failed", "role", job.role, "session", job.key, "error", err)
	}
	return err
}

// Wait blocks until background pushes started so far have finished.
func (a *Autosaver) Wait() {
	a.wg.Wait()
}

// Flush pushes a pending payload now and waits for it. Returns the push
// error, or nil when nothing was pending.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	job := a.takePending()
	a.mu.Unlock()

	if job == nil {
		return nil
	}
	return a.push(ctx, job)
}

// Close stops accepting payloads, pushes the pending one and waits for
// background pushes to finish.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	job := a.takePending()
	a.mu.Unlock()

	var err error
	if job != nil {
		err = a.push(ctx, job)
	}
	a.wg.Wait()
	return err
}
