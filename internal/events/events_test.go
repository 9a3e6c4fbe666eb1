package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	other := NewRecorder()
	sink := Multi{r, other, Discard}

	sink.Emit(Event{Kind: KindHeartbeat, Term: 1})
	sink.Emit(Event{Kind: KindDisputeCreated, Term: 1, Dispute: Round(1, 0), Participant: "subject"})
	sink.Emit(Event{Kind: KindHeartbeat, Term: 2})

	all := r.Events()
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, uint64(i), e.Seq)
	}
	assert.Equal(t, all, other.Events())

	assert.Len(t, r.OfKind(KindHeartbeat), 2)
	since := r.Since(1, 1)
	require.Len(t, since, 1)
	assert.Equal(t, KindDisputeCreated, since[0].Kind)
	assert.Equal(t, uint64(1), since[0].Dispute.DisputeID)
	assert.Empty(t, r.Since(3, 0))
}
