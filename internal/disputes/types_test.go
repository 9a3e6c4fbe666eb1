package disputes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateText(t *testing.T) {
	for _, s := range []State{StatePreDraft, StateAdjudicating, StateRuled} {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var got State
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, s, got)
	}
	for s := RoundInvalid; s <= RoundEnded; s++ {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got RoundState
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("appealing")))
	assert.Equal(t, `"confirming_appeal"`, mustJSON(t, RoundConfirmingAppeal))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
