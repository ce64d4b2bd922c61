package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace("open_scene", map[string]any{"scene": "1-1"}, 1)
	r.AddCompletionTrace(CaseOK, nil, 2)
	r.AddInvocationTrace("select", map[string]any{"index": 0, "text": "rain"}, 3)
	r.AddCompletionTrace(CaseOK, nil, 4)
	r.AddInvocationTrace("evaluate", map[string]any{}, 5)
	r.AddCompletionTrace(CaseOK, nil, 6)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "select", Args: map[string]any{"index": 0.0}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "evaluate"}))

	err := assertTraceContains(trace, Assertion{Action: "select", Args: map[string]any{"text": "snow"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, ae.Error(), "[3] select")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"open_scene", "evaluate"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"evaluate", "select"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate (pos 5) should be before select (pos 3)")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"open_scene", "clear"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: clear")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "select", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "clear", Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Action: "select", Count: 2}))
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]any{
		TableGameplay: map[string]any{
			"characters": []any{
				map[string]any{"name": "Lumpy", "heart": int64(2)},
			},
		},
		TableSessions: []any{
			map[string]any{"id": "session-1", "name": "Room 4"},
			map[string]any{"id": "session-2", "name": "Room 4"},
			map[string]any{"id": "session-3", "name": "Room 5"},
		},
	}

	t.Run("dotted path", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableGameplay,
			Expect: map[string]any{"characters.0.heart": 2, "characters.0.name": "Lumpy"},
		})
		assert.NoError(t, err)
	})

	t.Run("value mismatch", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableGameplay,
			Expect: map[string]any{"characters.0.heart": 3},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `field "characters.0.heart" = 3`)
	})

	t.Run("missing field", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableGameplay,
			Expect: map[string]any{"characters.1.heart": 0},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not present")
	})

	t.Run("where selects one row", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableSessions,
			Where:  map[string]any{"name": "Room 5"},
			Expect: map[string]any{"id": "session-3"},
		})
		assert.NoError(t, err)
	})

	t.Run("ambiguous where", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableSessions,
			Where:  map[string]any{"name": "Room 4"},
			Expect: map[string]any{"id": "session-1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("no matching row", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableSessions,
			Where:  map[string]any{"name": "Room 9"},
			Expect: map[string]any{"id": "session-1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name=Room 9")
	})

	t.Run("absent table", func(t *testing.T) {
		err := assertFinalState(state, Assertion{
			Table:  TableActiveSession,
			Expect: map[string]any{"id": "session-1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table not present")
	})
}

func TestLookupPath(t *testing.T) {
	tree := map[string]any{
		"a": []any{map[string]any{"b": "x"}},
		"1": "key named one",
	}

	got, ok := lookupPath(tree, "a.0.b")
	assert.True(t, ok)
	assert.Equal(t, "x", got)

	got, ok = lookupPath(tree, "1")
	assert.True(t, ok)
	assert.Equal(t, "key named one", got)

	for _, path := range []string{"a.1.b", "a.x", "a.-1", "missing", "1.0"} {
		_, ok := lookupPath(tree, path)
		assert.False(t, ok, path)
	}
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Action: "select", Count: 1},
		{Type: AssertTraceCount, Action: "select", Count: 3},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "3 occurrences of select")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
