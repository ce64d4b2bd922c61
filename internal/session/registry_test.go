package session

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/store"
	"github.com/roach88/fablekeep/internal/testutil"
)

type fixture struct {
	store *store.Store
	clock *testutil.FakeClock
	logs  *bytes.Buffer
}

func newFixture() *fixture {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	return &fixture{
		store: store.New(store.NewMemoryMedium(0), logger),
		clock: testutil.NewFakeClock(time.Time{}),
		logs:  logs,
	}
}

func (f *fixture) registry() *Registry {
	return NewRegistry(f.store,
		WithIDGenerator(testutil.NewSequentialIDGenerator("session")),
		WithClock(f.clock),
		WithLogger(slog.New(slog.NewTextHandler(f.logs, nil))),
	)
}

func TestCreate_SeedsDefaults(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()

	s := r.Create(ctx, "  Period 3 ")
	assert.Equal(t, "session-0001", s.ID)
	assert.Equal(t, "Period 3", s.Name)
	assert.Equal(t, testutil.Epoch, s.CreatedAt)
	assert.Equal(t, testutil.Epoch, s.UpdatedAt)
	assert.Equal(t, gameplay.NewSnapshot(), s.Gameplay)
	assert.Empty(t, s.SceneProgress)
	assert.Empty(t, r.ActiveID(), "create does not select")

	blank := r.Create(ctx, "")
	assert.Equal(t, defaultName, blank.Name)
	assert.NotEqual(t, s.ID, blank.ID)
}

func TestDelete_ClearsActivePointer(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()

	a := r.Create(ctx, "A")
	b := r.Create(ctx, "B")
	require.NoError(t, r.Select(ctx, a.ID))

	assert.True(t, r.Delete(ctx, b.ID))
	assert.Equal(t, a.ID, r.ActiveID())

	assert.True(t, r.Delete(ctx, a.ID))
	assert.Empty(t, r.ActiveID())
	_, ok := r.Active()
	assert.False(t, ok)

	assert.False(t, r.Delete(ctx, a.ID))
	assert.Zero(t, r.Len())
}

func TestSelect_Unknown(t *testing.T) {
	r := newFixture().registry()
	err := r.Select(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSceneStatus_SingleStarted(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	s := r.Create(ctx, "A")

	require.NoError(t, r.SetSceneStatus(ctx, s.ID, "1-1", Started))
	require.NoError(t, r.SetSceneStatus(ctx, s.ID, "1-2", Started))

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, map[string]SceneStatus{"1-1": Finished, "1-2": Started}, got.SceneProgress)

	require.NoError(t, r.SetSceneStatus(ctx, s.ID, "1-1", NoStatus))
	got, _ = r.Get(s.ID)
	assert.Equal(t, map[string]SceneStatus{"1-2": Started}, got.SceneProgress)

	err := r.SetSceneStatus(ctx, s.ID, "1-3", SceneStatus("paused"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, r.SetSceneStatus(ctx, "missing", "1-1", Started), ErrNotFound)
}

func TestMutations_StampUpdatedAtAndPersist(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	s := r.Create(ctx, "A")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"rename", func() error { return r.Rename(ctx, s.ID, "B") }},
		{"scene", func() error { return r.SetSceneStatus(ctx, s.ID, "1-1", Started) }},
		{"gameplay", func() error {
			snap := gameplay.NewSnapshot()
			snap.Adjust(gameplay.Heart, 3)
			return r.UpdateGameplay(ctx, s.ID, snap)
		}},
		{"add sleep", func() error { return r.AddSleepCard(ctx, s.ID, "12") }},
		{"sleep status", func() error { return r.SetSleepCardStatus(ctx, s.ID, "12", Restless) }},
		{"remove sleep", func() error { return r.RemoveSleepCard(ctx, s.ID, "12") }},
		{"add lost", func() error { return r.AddLostCard(ctx, s.ID, "7", "Button Jar") }},
		{"remove lost", func() error { return r.RemoveLostCard(ctx, s.ID, "7") }},
	}
	for _, step := range steps {
		f.clock.Advance(time.Minute)
		require.NoError(t, step.fn(), step.name)

		got, _ := r.Get(s.ID)
		assert.Equal(t, f.clock.Now(), got.UpdatedAt, step.name)

		reloaded := f.registry()
		reloaded.Load(ctx)
		stored, ok := reloaded.Get(s.ID)
		require.True(t, ok, step.name)
		assert.Equal(t, got.Export(), stored.Export(), step.name)
	}
}

func TestFailedMutation_DoesNotStamp(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	s := r.Create(ctx, "A")

	f.clock.Advance(time.Hour)
	err := r.RemoveSleepCard(ctx, s.ID, "99")
	assert.ErrorIs(t, err, ErrCardNotFound)

	got, _ := r.Get(s.ID)
	assert.Equal(t, testutil.Epoch, got.UpdatedAt)
}

func TestCardLogs(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	s := r.Create(ctx, "A")

	require.NoError(t, r.AddSleepCard(ctx, s.ID, " 3 "))
	assert.ErrorIs(t, r.AddSleepCard(ctx, s.ID, "3"), ErrCardExists)
	assert.ErrorIs(t, r.AddSleepCard(ctx, s.ID, "  "), ErrInvalidCard)
	assert.ErrorIs(t, r.SetSleepCardStatus(ctx, s.ID, "3", SleepStatus("dreaming")), ErrInvalidStatus)
	require.NoError(t, r.SetSleepCardStatus(ctx, s.ID, "3", Waking))

	require.NoError(t, r.AddLostCard(ctx, s.ID, "21", " Rusty Key "))
	assert.ErrorIs(t, r.AddLostCard(ctx, s.ID, "21", "again"), ErrCardExists)
	assert.ErrorIs(t, r.RemoveLostCard(ctx, s.ID, "22"), ErrCardNotFound)

	got, _ := r.Get(s.ID)
	assert.Equal(t, []SleepCard{{ID: "3", Status: Waking}}, got.SleepCards)
	assert.Equal(t, []LostCard{{ID: "21", Name: "Rusty Key"}}, got.LostCards)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := newFixture().registry()
	ctx := context.Background()
	s := r.Create(ctx, "A")

	got, _ := r.Get(s.ID)
	got.Name = "changed"
	got.SceneProgress["1-1"] = Started
	got.Gameplay.Adjust(gameplay.Buttons, 5)

	again, _ := r.Get(s.ID)
	assert.Equal(t, "A", again.Name)
	assert.Empty(t, again.SceneProgress)
	assert.Equal(t, 0, again.Gameplay.Characters[0].Buttons)
}

func TestLoad_RestoresActivePointer(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	r.Create(ctx, "A")
	b := r.Create(ctx, "B")
	require.NoError(t, r.Select(ctx, b.ID))

	reloaded := f.registry()
	reloaded.Load(ctx)
	assert.Equal(t, 2, reloaded.Len())
	active, ok := reloaded.Active()
	require.True(t, ok)
	assert.Equal(t, "B", active.Name)
}

func TestLoad_CorruptRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.True(t, f.store.Write(ctx, store.KeySessions, []byte("]["), ""))

	r := f.registry()
	r.Load(ctx)
	assert.Zero(t, r.Len())
	assert.Contains(t, f.logs.String(), "unable to read saved sessions")
}

func TestPut_InsertsAndReplaces(t *testing.T) {
	f := newFixture()
	r := f.registry()
	ctx := context.Background()
	a := r.Create(ctx, "A")

	imported := a.Clone()
	imported.Name = "A (restored)"
	r.Put(ctx, imported)
	assert.Equal(t, 1, r.Len())
	got, _ := r.Get(a.ID)
	assert.Equal(t, "A (restored)", got.Name)

	other := imported.Clone()
	other.ID = "external"
	other.Gameplay = nil
	r.Put(ctx, other)
	assert.Equal(t, 2, r.Len())
	got, _ = r.Get("external")
	assert.NotNil(t, got.Gameplay)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
