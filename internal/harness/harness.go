package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/store"
	"github.com/roach88/fablekeep/internal/testutil"
)

// Harness executes one scenario against an isolated in-memory app with a
// fake clock, sequential session ids and a seeded shuffle.
type Harness struct {
	app    *app.App
	clock  *testutil.FakeClock
	logger *slog.Logger
	seq    int64
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes app and harness logs to l. By default logs are
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a fresh in-memory app with deterministic helpers
// 2. Execute setup steps; any failure aborts the run
// 3. Execute flow steps, checking expect clauses
// 4. Capture final state and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	scenes, err := loadScenes(scenario, cfg.logger)
	if err != nil {
		return nil, err
	}

	seed := scenario.Seed
	if seed == 0 {
		seed = 1
	}
	role := backup.Student
	if scenario.Role != "" {
		role = backup.Role(scenario.Role)
	}

	clk := testutil.NewFakeClock(time.Time{})
	a, err := app.New(ctx, app.Options{
		Medium:    store.NewMemoryMedium(0),
		Scenes:    scenes,
		Role:      role,
		Remote:    backup.NewMemoryRemote(clk),
		Debounce:  time.Hour,
		Clock:     clk,
		Scheduler: clk,
		IDs:       testutil.NewSequentialIDGenerator("session"),
		Rand:      testutil.NewRand(seed),
		Logger:    cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	defer a.Close(ctx)

	h := &Harness{app: a, clock: clk, logger: cfg.logger}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	if err := h.captureState(result); err != nil {
		return nil, fmt.Errorf("failed to capture state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadScenes(scenario *Scenario, logger *slog.Logger) (*scene.Collection, error) {
	scenes := &scene.Collection{}
	if scenario.ScenesDir != "" {
		loaded, err := app.LoadScenes(scenario.ScenesDir, logger)
		if err != nil {
			return nil, err
		}
		scenes = loaded
	}
	for _, def := range scenario.Scenes {
		scenes.Scenes = append(scenes.Scenes, def.scene())
	}
	return scenes, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// executeSetup runs setup steps in order. Setup steps are traced like flow
// steps but must not fail.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		outcome, res, err := h.invoke(ctx, step.Action, step.Args, result)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		h.logger.Debug("setup step completed", "step", i, "action", step.Action, "output_case", outcome, "result", res)
	}
	return nil
}

// executeFlow runs flow steps and records expectation mismatches as
// result errors. Action errors are outcomes, not run failures.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		outcome, res, err := h.invoke(ctx, step.Invoke, step.Args, result)
		if err != nil {
			h.logger.Debug("flow step failed", "step", i, "action", step.Invoke, "error", err)
		}
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, outcome, res) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
			}
		}
		h.logger.Debug("flow step completed", "step", i, "action", step.Invoke, "output_case", outcome)
	}
}

// invoke runs one action and appends its invocation and completion to the
// trace. The returned error is the action's own error, already traced as
// an "error" completion.
func (h *Harness) invoke(ctx context.Context, action string, args map[string]any, result *Result) (string, map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	result.AddInvocationTrace(action, args, h.next())

	fn, ok := actions[action]
	if !ok {
		err := fmt.Errorf("unknown action %q", action)
		result.AddCompletionTrace(CaseError, map[string]any{"error": err.Error()}, h.next())
		return CaseError, nil, err
	}

	changed, res, err := fn(ctx, h, args)
	switch {
	case err != nil:
		res = map[string]any{"error": err.Error()}
		result.AddCompletionTrace(CaseError, res, h.next())
		return CaseError, res, err
	case changed:
		result.AddCompletionTrace(CaseOK, traceResult(res), h.next())
		return CaseOK, res, nil
	default:
		result.AddCompletionTrace(CaseUnchanged, traceResult(res), h.next())
		return CaseUnchanged, res, nil
	}
}

// traceResult keeps nil results out of the trace instead of recording a
// typed nil map.
func traceResult(res map[string]any) any {
	if res == nil {
		return nil
	}
	return res
}

func checkExpect(expect *ExpectClause, outcome string, res map[string]any) []string {
	var msgs []string
	if expect.Case != outcome {
		msgs = append(msgs, fmt.Sprintf("expected case %q, got %q", expect.Case, outcome))
	}
	for _, key := range canon.SortedKeys(expect.Result) {
		want := expect.Result[key]
		got, ok := lookupPath(res, key)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("result field %q missing", key))
			continue
		}
		if !valuesEqual(got, want) {
			msgs = append(msgs, fmt.Sprintf("result field %q = %v, want %v", key, got, want))
		}
	}
	return msgs
}

// captureState records the final state tables.
func (h *Harness) captureState(result *Result) error {
	if snap, err := h.app.Gameplay(); err == nil {
		result.State["gameplay"] = snap.Export()
	} else if !errors.Is(err, app.ErrNoActiveSession) {
		return err
	}

	st := h.app.Timeline().State()
	results := make(map[string]any, len(st.Results))
	for index, r := range st.Results {
		results[strconv.Itoa(index)] = string(r)
	}
	result.State["timeline"] = map[string]any{
		"scene":      st.SceneID,
		"selections": indexKeyed(st.Selections),
		"conflicts":  conflictList(st.Conflicts),
		"results":    results,
		"attempts":   st.Attempts,
	}

	sessions := h.app.Sessions().List()
	rows := make([]any, len(sessions))
	for i, s := range sessions {
		rows[i] = s.Export()
	}
	result.State["sessions"] = rows
	if s, ok := h.app.Sessions().Active(); ok {
		result.State["active_session"] = s.Export()
	}

	fp, err := canon.Fingerprint(canon.DomainGameplay, map[string]any{
		"gameplay": result.State["gameplay"],
		"sessions": rows,
	})
	if err != nil {
		return err
	}
	result.Fingerprint = fp
	return nil
}

func (h *Harness) activeSession() (string, error) {
	id := h.app.Sessions().ActiveID()
	if id == "" {
		return "", app.ErrNoActiveSession
	}
	return id, nil
}
