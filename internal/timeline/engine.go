package timeline

import (
	"context"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/store"
)

// Result is the evaluation outcome of one blank.
type Result string

const (
	Correct   Result = "correct"
	Incorrect Result = "incorrect"
)

// Persister is the subset of store.Store the engine needs.
type Persister interface {
	Read(ctx context.Context, key string) ([]byte, bool)
	Write(ctx context.Context, key string, value []byte, preserveSceneID string) bool
}

// State is a read-only copy of the engine's per-scene state.
type State struct {
	SceneID    string
	OptionPool []string
	Selections map[int]string
	Conflicts  []int
	Results    map[int]Result
	Attempts   int
}

// Engine holds the puzzle state of the currently prepared scene.
//
// Thread-safety: not safe for concurrent use. The application drives one
// user action at a time.
type Engine struct {
	persist Persister
	rng     *rand.Rand
	clock   clock.Clock
	logger  *slog.Logger

	scene      *scene.Scene
	pool       []string
	selections map[int]string
	conflicts  map[int]bool
	results    map[int]Result
	attempts   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used to shuffle option pools.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock sets the clock stamping persisted records.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. persist may be nil to disable persistence.
func New(persist Persister, opts ...Option) *Engine {
	e := &Engine{
		persist: persist,
		clock:   clock.System{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.pool = nil
	e.selections = make(map[int]string)
	e.conflicts = make(map[int]bool)
	e.results = make(map[int]Result)
	e.attempts = 0
}

// Prepare loads sc as the current scene: it builds a freshly shuffled option
// pool, resets selections, results and attempts, then restores whatever
// persisted progress for the scene is still valid. A nil scene clears all
// puzzle state.
func (e *Engine) Prepare(ctx context.Context, sc *scene.Scene) {
	e.reset()
	e.scene = sc
	if sc == nil {
		return
	}

	options := append(sc.BlankTexts(), sc.Timeline.Distractors...)
	e.pool = Shuffle(options, e.rng)

	if e.persist == nil {
		return
	}
	data, ok := e.persist.Read(ctx, store.TimelineKey(sc.ID))
	if !ok {
		return
	}
	saved, err := DecodeProgress(data)
	if err != nil {
		e.logger.Warn("unable to read saved timeline progress", "scene", sc.ID, "error", err)
		return
	}
	e.hydrate(saved)
}

// hydrate copies the valid parts of a saved record into the engine.
func (e *Engine) hydrate(saved *Progress) {
	for index, text := range saved.Selections {
		if e.acceptsSelection(index, text) {
			e.selections[index] = text
		}
	}
	for index, result := range saved.Results {
		if _, selected := e.selections[index]; !selected {
			continue
		}
		if result == Correct || result == Incorrect {
			e.results[index] = result
		}
	}
	e.attempts = saved.Attempts
	e.recomputeConflicts()
}

// acceptsSelection reports whether text may fill position index.
func (e *Engine) acceptsSelection(index int, text string) bool {
	if !e.scene.IsBlank(index) || text == "" {
		return false
	}
	return slices.Contains(e.pool, text)
}

// Select assigns text to the blank at index. Any change of selection clears
// all results, because scoring shown for the old answers no longer applies.
// Reports false, changing nothing, when index is not a blank or text is not
// an option of the current pool.
func (e *Engine) Select(ctx context.Context, index int, text string) bool {
	if e.scene == nil || !e.acceptsSelection(index, text) {
		return false
	}
	e.selections[index] = text
	e.afterSelectionChange(ctx)
	return true
}

// Clear removes the selection at index. Reports false when index is not a
// blank; clearing an unfilled blank still resets results.
func (e *Engine) Clear(ctx context.Context, index int) bool {
	if e.scene == nil || !e.scene.IsBlank(index) {
		return false
	}
	delete(e.selections, index)
	e.afterSelectionChange(ctx)
	return true
}

func (e *Engine) afterSelectionChange(ctx context.Context) {
	clear(e.results)
	e.recomputeConflicts()
	e.save(ctx)
}

// Evaluate scores every filled blank against its canonical text and counts
// the attempt, even when nothing is filled. Unfilled blanks get no result.
// Reports false when no scene is prepared.
func (e *Engine) Evaluate(ctx context.Context) bool {
	if e.scene == nil {
		return false
	}
	results := make(map[int]Result)
	for _, index := range e.scene.BlankIndices() {
		selection, ok := e.selections[index]
		if !ok {
			continue
		}
		if selection == e.scene.Timeline.Events[index].Text {
			results[index] = Correct
		} else {
			results[index] = Incorrect
		}
	}
	e.results = results
	e.attempts++
	e.save(ctx)
	return true
}

// recomputeConflicts flags every position whose text is also selected at
// another position. Indices are visited in ascending order so the first
// holder of a text is deterministic.
func (e *Engine) recomputeConflicts() {
	e.conflicts = Conflicts(e.selections)
}

// Conflicts returns the set of indices sharing a selected text with another
// index. It is a pure function of selections.
func Conflicts(selections map[int]string) map[int]bool {
	conflicts := make(map[int]bool)
	first := make(map[string]int, len(selections))
	for _, index := range slices.Sorted(maps.Keys(selections)) {
		text := selections[index]
		if text == "" {
			continue
		}
		if prev, seen := first[text]; seen {
			conflicts[prev] = true
			conflicts[index] = true
			continue
		}
		first[text] = index
	}
	return conflicts
}

func (e *Engine) save(ctx context.Context) {
	if e.persist == nil || e.scene == nil {
		return
	}
	record := &Progress{
		Version:    progressVersion,
		Selections: maps.Clone(e.selections),
		Results:    maps.Clone(e.results),
		Attempts:   e.attempts,
		UpdatedAt:  e.clock.Now().UnixMilli(),
	}
	data, err := record.Encode()
	if err != nil {
		e.logger.Warn("unable to encode timeline progress", "scene", e.scene.ID, "error", err)
		return
	}
	if !e.persist.Write(ctx, store.TimelineKey(e.scene.ID), data, e.scene.ID) {
		e.logger.Warn("unable to persist timeline progress", "scene", e.scene.ID)
	}
}

// Scene returns the prepared scene, or nil.
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	st := State{
		OptionPool: slices.Clone(e.pool),
		Selections: maps.Clone(e.selections),
		Conflicts:  slices.Sorted(maps.Keys(e.conflicts)),
		Results:    maps.Clone(e.results),
		Attempts:   e.attempts,
	}
	if e.scene != nil {
		st.SceneID = e.scene.ID
	}
	return st
}

// IsConflict reports whether index is in conflict.
func (e *Engine) IsConflict(index int) bool {
	return e.conflicts[index]
}

// Score returns the number of correct results and the number of blanks.
func (e *Engine) Score() (correct, total int) {
	if e.scene == nil {
		return 0, 0
	}
	for _, r := range e.results {
		if r == Correct {
			correct++
		}
	}
	return correct, len(e.scene.BlankIndices())
}

// Complete reports whether every blank is evaluated as correct.
func (e *Engine) Complete() bool {
	correct, total := e.Score()
	return total > 0 && correct == total
}

// Shuffle returns a uniformly permuted copy of items (Fisher-Yates).
func Shuffle(items []string, rng *rand.Rand) []string {
	out := slices.Clone(items)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
