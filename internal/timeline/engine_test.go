package timeline

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/store"
	"github.com/roach88/fablekeep/internal/testutil"
)

// floodScene has blanks at 0 and 1 and one distractor.
func floodScene() *scene.Scene {
	return &scene.Scene{
		ID: "1-1",
		Timeline: scene.Timeline{
			Events: []scene.Event{
				{Type: scene.Blank, Text: "the flood"},
				{Type: scene.Blank, Text: "the rescue"},
			},
			Distractors: []string{"a parade"},
		},
	}
}

// anchoredScene mixes anchors and blanks.
func anchoredScene() *scene.Scene {
	return &scene.Scene{
		ID: "1-2",
		Timeline: scene.Timeline{
			Events: []scene.Event{
				{Type: scene.Anchor, Text: "the toys wake up"},
				{Type: scene.Blank, Text: "rain starts"},
				{Type: scene.Anchor, Text: "the river rises"},
				{Type: scene.Blank, Text: "Lumpy finds a boat"},
			},
			Distractors: []string{"snow falls", "the sun sets"},
		},
	}
}

type fixture struct {
	store  *store.Store
	medium *store.MemoryMedium
	clock  *testutil.FakeClock
	logs   *bytes.Buffer
}

func newFixture() *fixture {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	medium := store.NewMemoryMedium(0)
	return &fixture{
		store:  store.New(medium, logger),
		medium: medium,
		clock:  testutil.NewFakeClock(time.Time{}),
		logs:   logs,
	}
}

func (f *fixture) engine(seed uint64) *Engine {
	return New(f.store,
		WithRand(testutil.NewRand(seed)),
		WithClock(f.clock),
		WithLogger(slog.New(slog.NewTextHandler(f.logs, nil))),
	)
}

func TestPrepare_OptionPoolIsPermutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for seed := uint64(0); seed < 20; seed++ {
		e := f.engine(seed)
		sc := anchoredScene()
		e.Prepare(ctx, sc)

		pool := e.State().OptionPool
		want := append(sc.BlankTexts(), sc.Timeline.Distractors...)
		assert.Len(t, pool, len(want))
		assert.ElementsMatch(t, want, pool)
	}
}

func TestPrepare_NilSceneResets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)

	e.Prepare(ctx, floodScene())
	require.True(t, e.Select(ctx, 0, "the flood"))

	e.Prepare(ctx, nil)
	st := e.State()
	assert.Empty(t, st.SceneID)
	assert.Empty(t, st.OptionPool)
	assert.Empty(t, st.Selections)
	assert.False(t, e.Select(ctx, 0, "the flood"))
	assert.False(t, e.Evaluate(ctx))
}

func TestFloodScenario_ConflictsAndEvaluation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, floodScene())

	require.True(t, e.Select(ctx, 0, "the rescue"))
	require.True(t, e.Select(ctx, 1, "the rescue"))
	assert.Equal(t, []int{0, 1}, e.State().Conflicts)

	require.True(t, e.Evaluate(ctx))
	st := e.State()
	assert.Equal(t, map[int]Result{0: Incorrect, 1: Correct}, st.Results)
	assert.Equal(t, 1, st.Attempts)

	correct, total := e.Score()
	assert.Equal(t, 1, correct)
	assert.Equal(t, 2, total)
	assert.False(t, e.Complete())
}

func TestSelect_ResolvingDuplicateClearsBothConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, floodScene())

	e.Select(ctx, 0, "the rescue")
	e.Select(ctx, 1, "the rescue")
	require.Len(t, e.State().Conflicts, 2)

	e.Select(ctx, 0, "the flood")
	assert.Empty(t, e.State().Conflicts)
	assert.False(t, e.IsConflict(0))
	assert.False(t, e.IsConflict(1))
}

func TestSelect_AlwaysClearsResults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, floodScene())

	e.Select(ctx, 0, "the flood")
	e.Evaluate(ctx)
	require.NotEmpty(t, e.State().Results)

	// Same value again still clears
	e.Select(ctx, 0, "the flood")
	assert.Empty(t, e.State().Results)

	e.Evaluate(ctx)
	require.NotEmpty(t, e.State().Results)
	e.Select(ctx, 0, "the flood")
	assert.Empty(t, e.State().Results)
}

func TestSelect_RejectsInvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, anchoredScene())

	tests := []struct {
		name  string
		index int
		text  string
	}{
		{"anchor index", 0, "rain starts"},
		{"negative index", -1, "rain starts"},
		{"out of range", 4, "rain starts"},
		{"empty text", 1, ""},
		{"text outside pool", 1, "a parade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, e.Select(ctx, tt.index, tt.text))
			assert.Empty(t, e.State().Selections)
		})
	}
}

func TestEvaluate_UnselectedBlanksHaveNoResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, anchoredScene())

	e.Select(ctx, 3, "Lumpy finds a boat")
	e.Evaluate(ctx)

	assert.Equal(t, map[int]Result{3: Correct}, e.State().Results)
}

func TestEvaluate_CountsEmptyAttempts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, anchoredScene())

	e.Evaluate(ctx)
	e.Evaluate(ctx)
	st := e.State()
	assert.Empty(t, st.Results)
	assert.Equal(t, 2, st.Attempts)
}

func TestComplete_AllBlanksCorrect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, anchoredScene())

	e.Select(ctx, 1, "rain starts")
	e.Select(ctx, 3, "Lumpy finds a boat")
	e.Evaluate(ctx)
	assert.True(t, e.Complete())
}

func TestClear_RemovesSelectionAndResults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, floodScene())

	e.Select(ctx, 0, "the rescue")
	e.Select(ctx, 1, "the rescue")
	e.Evaluate(ctx)

	require.True(t, e.Clear(ctx, 0))
	st := e.State()
	assert.Equal(t, map[int]string{1: "the rescue"}, st.Selections)
	assert.Empty(t, st.Conflicts)
	assert.Empty(t, st.Results)

	assert.False(t, e.Clear(ctx, 7))
}

func TestPrepare_RestoresPersistedProgress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.engine(1)
	first.Prepare(ctx, floodScene())
	first.Select(ctx, 0, "the rescue")
	first.Select(ctx, 1, "the rescue")
	first.Evaluate(ctx)

	second := f.engine(2)
	second.Prepare(ctx, floodScene())
	st := second.State()
	assert.Equal(t, map[int]string{0: "the rescue", 1: "the rescue"}, st.Selections)
	assert.Equal(t, map[int]Result{0: Incorrect, 1: Correct}, st.Results)
	assert.Equal(t, []int{0, 1}, st.Conflicts)
	assert.Equal(t, 1, st.Attempts)
}

func TestPrepare_DropsInvalidPersistedFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sc := anchoredScene()

	saved := `{"selections":{"0":"rain starts","1":"rain starts","3":"not an option","5":"snow falls","x":"snow falls"},` +
		`"results":{"1":"correct","3":"correct","0":"maybe"},"attempts":2.7,"updatedAt":5}`
	require.True(t, f.store.Write(ctx, store.TimelineKey(sc.ID), []byte(saved), ""))

	e := f.engine(1)
	e.Prepare(ctx, sc)
	st := e.State()
	assert.Equal(t, map[int]string{1: "rain starts"}, st.Selections)
	assert.Equal(t, map[int]Result{1: Correct}, st.Results)
	assert.Equal(t, 2, st.Attempts)
	assert.Empty(t, st.Conflicts)
}

func TestPrepare_CorruptRecordStartsFresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sc := floodScene()
	require.True(t, f.store.Write(ctx, store.TimelineKey(sc.ID), []byte("{not json"), ""))

	e := f.engine(1)
	e.Prepare(ctx, sc)
	st := e.State()
	assert.Empty(t, st.Selections)
	assert.Zero(t, st.Attempts)
	assert.Contains(t, f.logs.String(), "unable to read saved timeline progress")
}

func TestSave_StampsClockAndPreservesOwnScene(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	e := f.engine(1)
	e.Prepare(ctx, floodScene())

	f.clock.Advance(time.Minute)
	e.Select(ctx, 0, "the flood")

	data, ok := f.store.Read(ctx, store.TimelineKey("1-1"))
	require.True(t, ok)
	p, err := DecodeProgress(data)
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch.Add(time.Minute).UnixMilli(), p.UpdatedAt)
	assert.Equal(t, map[int]string{0: "the flood"}, p.Selections)
}

func TestSave_FailureKeepsMemoryState(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	// Too small for any record and nothing to evict
	st := store.New(store.NewMemoryMedium(10), logger)
	e := New(st, WithRand(testutil.NewRand(1)), WithLogger(logger))
	ctx := context.Background()

	e.Prepare(ctx, floodScene())
	require.True(t, e.Select(ctx, 0, "the flood"))
	assert.Equal(t, map[int]string{0: "the flood"}, e.State().Selections)
	assert.Contains(t, logs.String(), "unable to persist timeline progress")
}

func TestConflicts_PureFunction(t *testing.T) {
	tests := []struct {
		name       string
		selections map[int]string
		want       []int
	}{
		{"empty", map[int]string{}, nil},
		{"distinct", map[int]string{1: "a", 3: "b"}, nil},
		{"pair", map[int]string{1: "a", 3: "a"}, []int{1, 3}},
		{"triple", map[int]string{0: "a", 2: "a", 5: "a", 7: "b"}, []int{0, 2, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Conflicts(tt.selections)
			var indices []int
			for index := range got {
				indices = append(indices, index)
			}
			slices.Sort(indices)
			assert.Equal(t, tt.want, indices)
		})
	}
}

func TestShuffle_DoesNotMutateInput(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	out := Shuffle(in, testutil.NewRand(3))
	assert.Equal(t, []string{"a", "b", "c", "d"}, in)
	assert.ElementsMatch(t, in, out)
}
