package backup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/store"
	"github.com/roach88/fablekeep/internal/testutil"
)

type fixture struct {
	remote *MemoryRemote
	store  *store.Store
	clock  *testutil.FakeClock
	logs   *bytes.Buffer
	svc    *Service
}

func newFixture() *fixture {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	clk := testutil.NewFakeClock(time.Time{})
	f := &fixture{
		remote: NewMemoryRemote(clk),
		store:  store.New(store.NewMemoryMedium(0), logger),
		clock:  clk,
		logs:   logs,
	}
	f.svc = NewService(f.remote, WithMetaStore(f.store), WithClock(clk), WithLogger(logger))
	return f
}

func tree(t *testing.T, s string) any {
	t.Helper()
	v, err := canon.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestPush_CreatesThenUpdates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Push(ctx, Manual, Student, StudentKey, map[string]any{"heart": 1})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.svc.Push(ctx, Manual, Student, StudentKey, map[string]any{"heart": 2})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.remote.Len())
	assert.Equal(t, 1, f.remote.Calls("create"))
	assert.Equal(t, 1, f.remote.Calls("update"))

	rec, ok, err := f.svc.Pull(ctx, Manual, Student, StudentKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tree(t, `{"heart":2}`), rec.Data)
	assert.Equal(t, testutil.Epoch.Add(time.Minute), rec.UpdatedAt)
	assert.Equal(t, testutil.Epoch.Add(time.Minute), rec.ModifiedAt)
}

func TestPush_SlotsAndSessionsAreSeparate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Push(ctx, Manual, Teacher, "s-1", "a")
	require.NoError(t, err)
	_, err = f.svc.Push(ctx, Autosave, Teacher, "s-1", "b")
	require.NoError(t, err)
	_, err = f.svc.Push(ctx, Manual, Teacher, "s-2", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, f.remote.Len())

	rec, ok, err := f.svc.Pull(ctx, Autosave, Teacher, "s-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", rec.Data)

	_, ok, err = f.svc.Pull(ctx, Autosave, Teacher, "s-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPush_RecordsSlotMeta(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	file, err := f.svc.Push(ctx, Autosave, Student, StudentKey, 1)
	require.NoError(t, err)

	meta, ok := f.svc.Meta(ctx, Student, StudentKey, Autosave)
	require.True(t, ok)
	assert.Equal(t, file.ID, meta.FileID)
	assert.True(t, meta.ModifiedAt.Equal(testutil.Epoch))

	_, ok = f.svc.Meta(ctx, Student, StudentKey, Manual)
	assert.False(t, ok)
}

func TestPush_RemoteFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.remote.SetFailure(errors.New("offline"))

	_, err := f.svc.Push(ctx, Manual, Student, StudentKey, 1)
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.ErrorContains(t, err, "offline")

	_, ok := f.svc.Meta(ctx, Student, StudentKey, Manual)
	assert.False(t, ok)
}

func TestPush_UnknownSlot(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Push(context.Background(), Slot("weekly"), Student, StudentKey, 1)
	assert.ErrorIs(t, err, ErrUnknownSlot)
	assert.Zero(t, f.remote.Calls("find"))
}

func TestReconcileLoad_NothingToLoad(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ReconcileLoad(context.Background(), Student, StudentKey)
	assert.ErrorIs(t, err, ErrNothingToLoad)
}

func TestReconcileLoad_SingleSlotAuthoritative(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Push(ctx, Autosave, Student, StudentKey, map[string]any{"x": 1})
	require.NoError(t, err)

	d, err := f.svc.ReconcileLoad(ctx, Student, StudentKey)
	require.NoError(t, err)
	assert.False(t, d.Conflict())
	rec, ok := d.Resolved()
	require.True(t, ok)
	assert.Equal(t, Autosave, rec.Slot)

	_, err = d.Choose(Manual)
	assert.ErrorIs(t, err, ErrNothingToLoad)
}

func TestReconcileLoad_EqualSlotsPreferManual(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	// Same content, different key order and number spelling
	_, err := f.svc.Push(ctx, Autosave, Student, StudentKey, tree(t, `{"b":[1,2],"a":{"y":1.0,"x":"s"}}`))
	require.NoError(t, err)
	_, err = f.svc.Push(ctx, Manual, Student, StudentKey, tree(t, `{"a":{"x":"s","y":1},"b":[1,2]}`))
	require.NoError(t, err)

	d, err := f.svc.ReconcileLoad(ctx, Student, StudentKey)
	require.NoError(t, err)
	assert.False(t, d.Conflict())
	rec, ok := d.Resolved()
	require.True(t, ok)
	assert.Equal(t, Manual, rec.Slot)
	assert.Empty(t, d.Differences)
}

func TestReconcileLoad_ConflictNeedsChoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Push(ctx, Autosave, Teacher, "s-1", tree(t, `{"name":"A","heart":3}`))
	require.NoError(t, err)
	_, err = f.svc.Push(ctx, Manual, Teacher, "s-1", tree(t, `{"name":"A","heart":2}`))
	require.NoError(t, err)

	d, err := f.svc.ReconcileLoad(ctx, Teacher, "s-1")
	require.NoError(t, err)
	assert.True(t, d.Conflict())
	_, ok := d.Resolved()
	assert.False(t, ok)
	assert.Equal(t, []string{"heart"}, d.Differences)

	rec, err := d.Choose(Autosave)
	require.NoError(t, err)
	assert.Equal(t, tree(t, `{"name":"A","heart":3}`), rec.Data)

	_, err = d.Choose(Slot("other"))
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestReconcileLoad_RemoteFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Push(ctx, Manual, Student, StudentKey, 1)
	require.NoError(t, err)

	f.remote.SetFailure(errors.New("timeout"))
	_, err = f.svc.ReconcileLoad(ctx, Student, StudentKey)
	assert.True(t, IsRemoteError(err))
}

func TestReconcileLoad_MalformedSlotCountsAsAbsent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Push(ctx, Manual, Student, StudentKey, "good")
	require.NoError(t, err)
	_, err = f.remote.Create(ctx, f.svc.tags(Autosave, Student, StudentKey), []byte("garbage"))
	require.NoError(t, err)

	d, err := f.svc.ReconcileLoad(ctx, Student, StudentKey)
	require.NoError(t, err)
	rec, ok := d.Resolved()
	require.True(t, ok)
	assert.Equal(t, Manual, rec.Slot)
	assert.Contains(t, f.logs.String(), "ignoring unreadable backup slot")
}

func TestPull_Malformed(t *testing.T) {
	ctx := context.Background()
	for _, body := range []string{`[]`, `{"updatedAt":"x"}`, `{"data":null}`} {
		remote := NewMemoryRemote(nil)
		svc := NewService(remote)
		_, err := remote.Create(ctx, svc.tags(Manual, Student, StudentKey), []byte(body))
		require.NoError(t, err)
		_, _, err = svc.Pull(ctx, Manual, Student, StudentKey)
		assert.ErrorIs(t, err, ErrMalformedRecord, body)
	}
}
