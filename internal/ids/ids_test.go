package ids

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortIDWidthAndAlphabet(t *testing.T) {
	for _, length := range []int{4, 8, 12} {
		id, err := ShortID(length)
		require.NoError(t, err)
		assert.Len(t, id, length)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
	}
}

func TestShortIDUniqueAcrossRun(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := ShortID(8)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate short id %s", id)
		seen[id] = struct{}{}
	}
}

func TestShortIDRejectsBiasedBytes(t *testing.T) {
	// 0xff and 0xf8 are at or above the rejection threshold; 0x00 maps to '0', 0x3d to 'z'.
	src := bytes.NewReader([]byte{0xff, 0xf8, 0x00, 0x3d, 0x00, 0x00})
	id, err := shortID(src, 2)
	require.NoError(t, err)
	assert.Equal(t, "0z", id)
}

func TestShortIDInvalidLength(t *testing.T) {
	_, err := ShortID(0)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestSecret(t *testing.T) {
	s, err := Secret(24)
	require.NoError(t, err)
	assert.Len(t, s, 48)
	assert.Equal(t, strings.ToLower(s), s)

	other, err := Secret(24)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomSourceFailure(t *testing.T) {
	_, err := secret(failingReader{}, 24)
	assert.Error(t, err)

	_, err = shortID(failingReader{}, 8)
	assert.Error(t, err)
}

func TestGenerator(t *testing.T) {
	g := NewGenerator(10, 16)

	id, err := g.ShortID()
	require.NoError(t, err)
	assert.Len(t, id, 10)

	key, err := g.Secret()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestNew(t *testing.T) {
	assert.NotEqual(t, New(), New())
	assert.Len(t, New(), 27)
}
