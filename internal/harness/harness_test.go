package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml), "")
	require.NoError(t, err)
	return s
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: wrong expected heart
flow:
  - invoke: adjust
    args: { counter: heart, delta: 1 }
    expect: { case: ok, result: { heart: 3 } }
assertions:
  - type: trace_count
    action: adjust
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `flow[0] adjust: result field "heart" = 1, want 3`)
}

func TestRun_ActionErrorIsTraced(t *testing.T) {
	s := mustParse(t, `
name: teacher_without_session
description: character edits need an active session
role: teacher
flow:
  - invoke: adjust
    args: { counter: heart, delta: 1 }
    expect: { case: error }
assertions:
  - type: trace_count
    action: adjust
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, CaseError, result.Trace[1].OutputCase)
	assert.Contains(t, result.Trace[1].Result, "error")
	assert.NotContains(t, result.State, TableGameplay)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	s := mustParse(t, `
name: bad_setup
description: setup opens a scene that does not exist
setup:
  - action: open_scene
    args: { scene: "9-9" }
flow:
  - invoke: evaluate
assertions:
  - type: trace_count
    action: evaluate
    count: 1
`)

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (open_scene)")
}

func TestRun_MissingArgument(t *testing.T) {
	s := mustParse(t, `
name: missing_arg
description: adjust without a delta
flow:
  - invoke: adjust
    args: { counter: heart }
    expect: { case: error }
assertions:
  - type: trace_count
    action: adjust
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailingAssertion(t *testing.T) {
	s := mustParse(t, `
name: failing_assertion
description: final state does not match
flow:
  - invoke: adjust
    args: { counter: buttons, delta: 2 }
assertions:
  - type: final_state
    table: gameplay
    expect: { characters.0.buttons: 5 }
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `field "characters.0.buttons" = 5`)
}

func TestRun_TraceSequence(t *testing.T) {
	s := mustParse(t, `
name: sequence
description: seq numbers run across invocations and completions
flow:
  - invoke: adjust
    args: { counter: heart, delta: 1 }
  - invoke: adjust
    args: { counter: heart, delta: 1 }
assertions:
  - type: trace_count
    action: adjust
    count: 2
`)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, 4)
	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, "invocation", result.Trace[0].Type)
	assert.Equal(t, "completion", result.Trace[1].Type)
}

func TestActionNames(t *testing.T) {
	names := ActionNames()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "open_scene")
	assert.Contains(t, names, "backup_load")
	for _, name := range names {
		assert.True(t, knownAction(name))
	}
}

func TestRun_AdvanceClockFiresAutosave(t *testing.T) {
	s := mustParse(t, `
name: autosave_after_quiet_hour
description: an hour without edits pushes the autosave slot
flow:
  - invoke: adjust
    args: { counter: heart, delta: 1 }
  - invoke: backup_load
    expect: { case: error }
  - invoke: adjust
    args: { counter: heart, delta: 1 }
  - invoke: advance_clock
    args: { seconds: 3599 }
  - invoke: backup_load
    expect: { case: error }
  - invoke: advance_clock
    args: { seconds: 1 }
  - invoke: backup_load
    expect: { case: ok, result: { conflict: false, slot: autosave } }
assertions:
  - type: trace_count
    action: backup_load
    count: 3
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
