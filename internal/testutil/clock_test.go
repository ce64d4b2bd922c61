package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	clock.Advance(90 * time.Second)
	assert.Equal(t, Epoch.Add(90*time.Second), clock.Now())

	// Now does not move the clock
	assert.Equal(t, clock.Now(), clock.Now())
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	target := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestTickingClock_Increases(t *testing.T) {
	clock := NewTickingClock(time.Millisecond)
	first := clock.Now()
	second := clock.Now()
	assert.Equal(t, Epoch, first)
	assert.Equal(t, Epoch.Add(time.Millisecond), second)
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Second), clock.Now())
}

func TestFakeClock_AfterFuncFiresOnAdvance(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	var fired []string
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)
	assert.Equal(t, 2, clock.Waiting())

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Zero(t, clock.Waiting())

	// Callbacks run once
	clock.Advance(time.Hour)
	assert.Len(t, fired, 2)
}

func TestFakeClock_StopCancelsCallback(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	ran := false
	timer := clock.AfterFunc(time.Second, func() { ran = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Minute)
	assert.False(t, ran)
}

func TestFakeClock_StopAfterFireReportsFalse(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	timer := clock.AfterFunc(time.Second, func() {})
	clock.Set(Epoch.Add(time.Second))
	assert.False(t, timer.Stop())
}
