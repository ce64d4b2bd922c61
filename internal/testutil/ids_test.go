package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDGenerator_Sequence(t *testing.T) {
	gen := NewSequentialIDGenerator("session")

	assert.Equal(t, "session-0001", gen.Generate())
	assert.Equal(t, "session-0002", gen.Generate())
	assert.Equal(t, "session-0003", gen.Generate())
}

func TestSequentialIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDGenerator("")
	assert.Equal(t, "id-0001", gen.Generate())
}

func TestNewRand_Deterministic(t *testing.T) {
	a := NewRand(7)
	b := NewRand(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}
