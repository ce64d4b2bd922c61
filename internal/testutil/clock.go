// Package testutil holds deterministic stand-ins for time, identifiers and
// randomness so tests and harness scenarios produce byte-identical output.
package testutil

import (
	"slices"
	"sync"
	"time"

	"github.com/roach88/fablekeep/internal/clock"
)

// Epoch is the default start time of a FakeClock.
var Epoch = time.Date(2024, time.September, 1, 9, 0, 0, 0, time.UTC)

// FakeClock is a manually advanced wall clock. Callbacks registered with
// AfterFunc run on the goroutine that calls Advance or Set, once the clock
// reaches their deadline.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *FakeClock
	at    time.Time
	f     func()
	done  bool
}

// Stop implements clock.Timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// NewFakeClock creates a clock reading start. A zero start uses Epoch.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and runs the callbacks that came due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := c.takeDue()
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

// Set jumps the clock to t and runs the callbacks that came due.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	due := c.takeDue()
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

// AfterFunc implements clock.Scheduler. A non-positive d runs f on the next
// Advance or Set.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Waiting returns the number of callbacks not yet run or stopped.
func (c *FakeClock) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// takeDue marks timers at or before now as done and returns their
// callbacks in deadline order. Callers hold c.mu.
func (c *FakeClock) takeDue() []func() {
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	slices.SortStableFunc(due, func(a, b *fakeTimer) int { return a.at.Compare(b.at) })
	fs := make([]func(), len(due))
	for i, t := range due {
		fs[i] = t.f
	}
	return fs
}

// TickingClock returns Now and then advances by step, so every reading is
// distinct and increasing.
type TickingClock struct {
	FakeClock
	step time.Duration
}

// NewTickingClock creates a clock starting at Epoch advancing by step per read.
func NewTickingClock(step time.Duration) *TickingClock {
	return &TickingClock{FakeClock: FakeClock{now: Epoch}, step: step}
}

// Now returns the current reading and advances the clock.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}
