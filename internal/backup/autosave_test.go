package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testDelay = time.Second

func TestAutosaver_DebouncesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, testDelay, nil, WithScheduler(f.clock))

	for i := 1; i <= 5; i++ {
		a.Schedule(Student, StudentKey, i)
	}
	assert.Equal(t, 1, f.clock.Waiting())
	f.clock.Advance(testDelay)
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 1, f.remote.Calls("create"))
	assert.Zero(t, f.remote.Calls("update"))
	rec, ok, err := f.svc.Pull(context.Background(), Autosave, Student, StudentKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree(t, `5`), rec.Data)
}

func TestAutosaver_ScheduleRestartsQuietPeriod(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, testDelay, nil, WithScheduler(f.clock))

	a.Schedule(Student, StudentKey, "first")
	f.clock.Advance(600 * time.Millisecond)
	a.Schedule(Student, StudentKey, "second")
	f.clock.Advance(600 * time.Millisecond)

	// 1.2s after the first payload, but only 0.6s after the second
	assert.True(t, a.Pending())
	assert.Zero(t, f.remote.Calls("find"))

	f.clock.Advance(500 * time.Millisecond)
	assert.False(t, a.Pending())
	require.NoError(t, a.Close(context.Background()))

	assert.Equal(t, 1, f.remote.Calls("create"))
	rec, ok, err := f.svc.Pull(context.Background(), Autosave, Student, StudentKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree(t, `"second"`), rec.Data)
}

func TestAutosaver_StaleCallbackDoesNotPush(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, testDelay, nil, WithScheduler(f.clock))

	a.Schedule(Student, StudentKey, "first")
	stale := a.gen
	a.Schedule(Student, StudentKey, "second")

	// A callback of the first quiet period that ran after the second Schedule
	a.fire(stale)
	assert.True(t, a.Pending())
	assert.Zero(t, f.remote.Calls("find"))

	f.clock.Advance(testDelay)
	require.NoError(t, a.Close(context.Background()))
	rec, ok, err := f.svc.Pull(context.Background(), Autosave, Student, StudentKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree(t, `"second"`), rec.Data)
}

// hookRemote runs onCreate before every Create.
type hookRemote struct {
	*MemoryRemote
	onCreate func()
}

func (r *hookRemote) Create(ctx context.Context, tags Tags, body []byte) (File, error) {
	if r.onCreate != nil {
		r.onCreate()
	}
	return r.MemoryRemote.Create(ctx, tags, body)
}

func TestAutosaver_CloseRejectsScheduleDuringFinalPush(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	remote := &hookRemote{MemoryRemote: f.remote}
	svc := NewService(remote, WithMetaStore(f.store), WithClock(f.clock))
	a := NewAutosaver(svc, testDelay, nil, WithScheduler(f.clock))
	remote.onCreate = func() { a.Schedule(Student, StudentKey, "late") }

	a.Schedule(Student, StudentKey, "bye")
	require.NoError(t, a.Close(context.Background()))

	assert.False(t, a.Pending())
	assert.Zero(t, f.clock.Waiting())
	assert.Equal(t, 1, f.remote.Calls("create"))
}

func TestAutosaver_FlushPushesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, time.Hour, nil)

	a.Schedule(Teacher, "s-1", "latest")
	assert.True(t, a.Pending())
	require.NoError(t, a.Flush(context.Background()))
	assert.False(t, a.Pending())
	assert.Equal(t, 1, f.remote.Len())

	// Nothing pending
	require.NoError(t, a.Flush(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}

func TestAutosaver_CloseFlushesPending(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, time.Hour, nil)

	a.Schedule(Student, StudentKey, "bye")
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, f.remote.Len())

	// Closed autosavers ignore new work
	a.Schedule(Student, StudentKey, "late")
	assert.False(t, a.Pending())
}

func TestAutosaver_DifferentRecordPushesPrevious(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	a := NewAutosaver(f.svc, time.Hour, nil)

	a.Schedule(Teacher, "s-1", "one")
	a.Schedule(Teacher, "s-2", "two")
	require.NoError(t, a.Close(context.Background()))

	for _, key := range []string{"s-1", "s-2"} {
		_, ok, err := f.svc.Pull(context.Background(), Autosave, Teacher, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestAutosaver_FailureIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture()
	f.remote.SetFailure(errors.New("offline"))
	a := NewAutosaver(f.svc, testDelay, f.svc.logger, WithScheduler(f.clock))

	a.Schedule(Student, StudentKey, 1)
	f.clock.Advance(testDelay)
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, f.remote.Calls("find"))
	assert.Contains(t, f.logs.String(), "autosave failed")
}
