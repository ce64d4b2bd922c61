package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a, err := Fingerprint(DomainGameplay, map[string]any{"x": 1, "y": "two"})
	require.NoError(t, err)
	b, err := Fingerprint(DomainGameplay, map[string]any{"y": "two", "x": 1.0})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintDomainSeparation(t *testing.T) {
	payload := map[string]any{"id": "s-1"}

	gameplay, err := Fingerprint(DomainGameplay, payload)
	require.NoError(t, err)
	session, err := Fingerprint(DomainSession, payload)
	require.NoError(t, err)

	assert.NotEqual(t, gameplay, session)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + "c" and "a" + "bc" must not collide.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
