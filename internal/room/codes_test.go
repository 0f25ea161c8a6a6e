package room

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	store := newFakeStore()

	code, err := generateRoomCode(context.Background(), store)
	require.NoError(t, err)

	assert.Len(t, code, codeLength)
	for _, c := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q", c)
	}
	assert.NotContains(t, code, "0")
	assert.NotContains(t, code, "O")
	assert.NotContains(t, code, "1")
	assert.NotContains(t, code, "I")
}

func TestGenerateRoomCodeSkipsActiveCodes(t *testing.T) {
	store := newFakeStore()
	// mark a large slice of the space as taken; the generator must still
	// land on a free code
	for i := 0; i < 100; i++ {
		code, err := generateRoomCode(context.Background(), store)
		require.NoError(t, err)
		assert.False(t, store.activeCode[code], "generator returned an active code")
		store.activeCode[code] = true
	}
}
