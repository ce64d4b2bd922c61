package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_EncodeIsCanonical(t *testing.T) {
	p := &Progress{
		Version:    progressVersion,
		Selections: map[int]string{3: "b", 1: "a"},
		Results:    map[int]Result{1: Correct},
		Attempts:   2,
		UpdatedAt:  1700000000000,
	}
	data, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t,
		`{"attempts":2,"results":{"1":"correct"},"selections":{"1":"a","3":"b"},"updatedAt":1700000000000,"version":1}`,
		string(data))

	back, err := DecodeProgress(data)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestDecodeProgress_Lenient(t *testing.T) {
	p, err := DecodeProgress([]byte(`{"selections":{"01":"a","-1":"b","2":7,"4":""},"results":[],"attempts":-3}`))
	require.NoError(t, err)
	assert.Empty(t, p.Selections)
	assert.Empty(t, p.Results)
	assert.Zero(t, p.Attempts)
	assert.Equal(t, progressVersion, p.Version)
}

func TestDecodeProgress_Rejects(t *testing.T) {
	for _, input := range []string{`[]`, `"x"`, `{`, `{"version":9}`} {
		_, err := DecodeProgress([]byte(input))
		assert.Error(t, err, input)
	}
}
