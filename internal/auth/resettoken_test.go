package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNewResetToken_Format(t *testing.T) {
	token, digest, err := NewResetToken(nil)
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assert.True(t, IsWellFormedResetToken(token))
	assert.Equal(t, DigestResetToken(token), digest)
	assert.NotEqual(t, token, digest)
}

func TestNewResetToken_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, _, err := NewResetToken(nil)
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestNewResetToken_DeterministicSource(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xab}, ResetTokenBytes))
	token, _, err := NewResetToken(src)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", ResetTokenBytes), token)
}

func TestNewResetToken_ShortRead(t *testing.T) {
	_, _, err := NewResetToken(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)

	_, _, err = NewResetToken(failingReader{})
	assert.Error(t, err)
}

func TestIsWellFormedResetToken(t *testing.T) {
	assert.False(t, IsWellFormedResetToken(""))
	assert.False(t, IsWellFormedResetToken(strings.Repeat("a", 63)))
	assert.False(t, IsWellFormedResetToken(strings.Repeat("z", 64)))
}
