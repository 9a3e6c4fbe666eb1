package checkpointing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_Get(t *testing.T) {
	var h History[uint64]
	assert.Equal(t, uint64(0), h.Get(10))

	require.NoError(t, h.Add(2, 20))
	require.NoError(t, h.Add(5, 50))
	require.NoError(t, h.Add(9, 90))

	tests := []struct {
		time uint64
		want uint64
	}{
		{0, 0}, {1, 0}, {2, 20}, {3, 20}, {4, 20}, {5, 50}, {8, 50}, {9, 90}, {100, 90},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, h.Get(tc.time), "time %d", tc.time)
	}
	assert.Equal(t, uint64(90), h.Last())
	last, ok := h.LastTime()
	assert.True(t, ok)
	assert.Equal(t, uint64(9), last)
}

func TestHistory_OverwriteAndPast(t *testing.T) {
	var h History[string]
	require.NoError(t, h.Add(3, "a"))
	require.NoError(t, h.Add(3, "b"))
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "b", h.Get(3))

	err := h.Add(2, "c")
	assert.ErrorIs(t, err, ErrCannotAddPastValue)
	assert.Equal(t, "b", h.Last())
}

func TestHistory_Empty(t *testing.T) {
	var h History[*int]
	assert.Nil(t, h.Last())
	_, ok := h.LastTime()
	assert.False(t, ok)
}
