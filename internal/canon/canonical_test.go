package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"null", nil, "null"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"integral float", 3.0, "3"},
		{"fraction", 0.5, "0.5"},
		{"number literal with exponent", json.Number("1e2"), "100"},
		{"simple object", map[string]any{"a": 1}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeysNested(t *testing.T) {
	obj := map[string]any{
		"zebra": map[string]any{"b": 1, "a": 2},
		"alpha": []any{"x", map[string]any{"d": true, "c": nil}},
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":["x",{"c":null,"d":true}],"zebra":{"a":2,"b":1}}`, string(result))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair 0xD800 0xDC00, which sorts before
	// U+E000 in UTF-16 even though its UTF-8 bytes sort after.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	result, err := Marshal("<b>&</b>")
	require.NoError(t, err)
	assert.Equal(t, `"<b>&</b>"`, string(result))
}

func TestMarshalNFCNormalization(t *testing.T) {
	decomposed := "e\u0301" // e + combining acute
	composed := "\u00e9"

	a, err := Marshal(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	b, err := Marshal(map[string]any{composed: composed})
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalLineSeparatorsLiteral(t *testing.T) {
	result, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalLiteralBackslashU2028(t *testing.T) {
	// A literal backslash followed by the text "u2028" must stay escaped.
	result, err := Marshal(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalStructValues(t *testing.T) {
	type record struct {
		UpdatedAt int64          `json:"updatedAt"`
		Data      map[string]int `json:"data"`
	}

	result, err := Marshal(record{UpdatedAt: 7, Data: map[string]int{"b": 2, "a": 1}})
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"a":1,"b":2},"updatedAt":7}`, string(result))
}

func TestMarshalRejectsNonFinite(t *testing.T) {
	_, err := Normalize(map[string]any{"x": json.Number("NaN")})
	assert.Error(t, err)
}

func TestEqualIgnoresKeyOrder(t *testing.T) {
	a, err := Decode([]byte(`{"activeCharacterIndex":0,"characters":[{"name":"Lumpy","heart":2}]}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"characters":[{"heart":2,"name":"Lumpy"}],"activeCharacterIndex":0}`))
	require.NoError(t, err)

	equal, err := Equal(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestEqualNumericSpelling(t *testing.T) {
	// Integral values compare equal however they are spelled; genuine
	// floating point differences are still differences.
	tests := []struct {
		a, b  string
		equal bool
	}{
		{`{"n":1}`, `{"n":1.0}`, true},
		{`{"n":100}`, `{"n":1e2}`, true},
		{`{"n":0.30000000000000004}`, `{"n":0.3}`, false},
		{`{"n":-0}`, `{"n":0}`, true},
	}

	for _, tt := range tests {
		a, err := Decode([]byte(tt.a))
		require.NoError(t, err)
		b, err := Decode([]byte(tt.b))
		require.NoError(t, err)

		equal, err := Equal(a, b)
		require.NoError(t, err)
		assert.Equal(t, tt.equal, equal, "%s vs %s", tt.a, tt.b)
	}
}

func TestEqualArrayOrderMatters(t *testing.T) {
	equal, err := Equal([]any{"a", "b"}, []any{"b", "a"})
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}
