package voting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/testutils"
)

var errClosed = errors.New("window closed")

type ownerStub struct {
	commitOpen bool
	revealOpen bool
	weights    map[common.Address]uint64
}

func (o *ownerStub) EnsureCanCommit(ID) error {
	if !o.commitOpen {
		return errClosed
	}
	return nil
}

func (o *ownerStub) EnsureVoterWeightToCommit(_ ID, voter common.Address) (uint64, error) {
	return o.weights[voter], nil
}

func (o *ownerStub) EnsureCanReveal(_ ID, voter common.Address) (uint64, error) {
	if !o.revealOpen {
		return 0, errClosed
	}
	return o.weights[voter], nil
}

type termStub struct{}

func (termStub) CurrentTerm() common.TermID { return 7 }

func salt(b byte) crypto.Salt {
	var s crypto.Salt
	s[0] = b
	return s
}

var voteID = ID{DisputeID: 1, RoundID: 0}

func newTestVoting(t *testing.T, weights map[common.Address]uint64) (*Voting, *ownerStub, *events.Recorder) {
	t.Helper()
	owner := &ownerStub{commitOpen: true, weights: weights}
	rec := events.NewRecorder()
	v := New(owner, termStub{}, rec)
	require.NoError(t, v.Create(voteID, 2))
	return v, owner, rec
}

// commitAndReveal runs a full voting cycle and returns the winning outcome.
func commitAndReveal(t *testing.T, weights map[common.Address]uint64, outcomes map[common.Address]Outcome) Outcome {
	t.Helper()
	v, owner, _ := newTestVoting(t, weights)
	for voter, o := range outcomes {
		require.NoError(t, v.Commit(voteID, voter, crypto.CommitmentHash(o, salt(1))))
	}
	owner.commitOpen, owner.revealOpen = false, true
	for voter, o := range outcomes {
		require.NoError(t, v.Reveal(voteID, voter, o, salt(1)))
	}
	w, err := v.WinningOutcome(voteID)
	require.NoError(t, err)
	return w
}

func TestCreate(t *testing.T) {
	v := New(&ownerStub{}, termStub{}, nil)
	assert.ErrorIs(t, v.Create(voteID, 3), ErrInvalidOutcomesAmount)
	assert.ErrorIs(t, v.Create(voteID, 1), ErrInvalidOutcomesAmount)
	require.NoError(t, v.Create(voteID, 2))
	assert.ErrorIs(t, v.Create(voteID, 2), ErrVoteAlreadyExists)

	_, err := v.WinningOutcome(ID{DisputeID: 2})
	assert.ErrorIs(t, err, ErrVoteDoesNotExist)

	for o, valid := range map[Outcome]bool{
		OutcomeMissing: false, OutcomeLeaked: false, OutcomeRefused: true,
		OutcomeLow: true, OutcomeHigh: true, OutcomeHigh + 1: false,
	} {
		got, err := v.IsValidOutcome(voteID, o)
		require.NoError(t, err)
		assert.Equal(t, valid, got, "outcome %d", o)
	}
}

func TestCommitReveal(t *testing.T) {
	v, owner, rec := newTestVoting(t, map[common.Address]uint64{"alice": 2, "bob": 1})

	t.Run("commit", func(t *testing.T) {
		assert.ErrorIs(t, v.Commit(voteID, "carol", crypto.Hash{}), ErrVoterWeightZero)
		require.NoError(t, v.Commit(voteID, "alice", crypto.CommitmentHash(OutcomeLow, salt(1))))
		assert.ErrorIs(t, v.Commit(voteID, "alice", crypto.Hash{}), ErrVoteAlreadyCommitted)
		require.NoError(t, v.Commit(voteID, "bob", crypto.CommitmentHash(OutcomeHigh, salt(2))))

		s, err := v.VoterState(voteID, "alice")
		require.NoError(t, err)
		assert.Equal(t, Committed{Commitment: crypto.CommitmentHash(OutcomeLow, salt(1))}, s)
	})

	t.Run("reveal only in the reveal window", func(t *testing.T) {
		assert.ErrorIs(t, v.Reveal(voteID, "alice", OutcomeLow, salt(1)), errClosed)
		owner.commitOpen, owner.revealOpen = false, true
		assert.ErrorIs(t, v.Commit(voteID, "carol", crypto.Hash{}), errClosed)
	})

	t.Run("reveal", func(t *testing.T) {
		assert.ErrorIs(t, v.Reveal(voteID, "alice", OutcomeHigh, salt(1)), ErrInvalidCommitmentSalt)
		assert.ErrorIs(t, v.Reveal(voteID, "alice", OutcomeLeaked, salt(1)), ErrInvalidOutcome)
		assert.ErrorIs(t, v.Reveal(voteID, "carol", OutcomeLow, salt(1)), ErrVoteNotCommitted)
		require.NoError(t, v.Reveal(voteID, "alice", OutcomeLow, salt(1)))
		assert.ErrorIs(t, v.Reveal(voteID, "alice", OutcomeLow, salt(1)), ErrVoteAlreadyRevealed)
		require.NoError(t, v.Reveal(voteID, "bob", OutcomeHigh, salt(2)))
	})

	w, err := v.WinningOutcome(voteID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLow, w)
	tally, err := v.WinningOutcomeTally(voteID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tally)

	ok, err := v.HasVotedInFavorOf(voteID, OutcomeHigh, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	o, err := v.VoterOutcome(voteID, "carol")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, o)

	all, err := v.Tally(voteID)
	require.NoError(t, err)
	assert.Equal(t, map[Outcome]uint64{OutcomeLow: 2, OutcomeHigh: 1}, all)

	assert.Len(t, rec.OfKind(events.KindVoteCommitted), 2)
	revealed := rec.OfKind(events.KindVoteRevealed)
	require.Len(t, revealed, 2)
	assert.Equal(t, events.Round(1, 0), revealed[0].Dispute)
	assert.Equal(t, common.TermID(7), revealed[0].Term)
}

func TestLeak(t *testing.T) {
	v, owner, _ := newTestVoting(t, map[common.Address]uint64{"alice": 3})
	require.NoError(t, v.Commit(voteID, "alice", crypto.CommitmentHash(OutcomeHigh, salt(9))))

	assert.ErrorIs(t, v.Leak(voteID, "alice", OutcomeLow, salt(9)), ErrInvalidCommitmentSalt)
	require.NoError(t, v.Leak(voteID, "alice", OutcomeHigh, salt(9)))
	assert.ErrorIs(t, v.Leak(voteID, "alice", OutcomeHigh, salt(9)), ErrVoteAlreadyLeaked)

	owner.commitOpen, owner.revealOpen = false, true
	assert.ErrorIs(t, v.Reveal(voteID, "alice", OutcomeHigh, salt(9)), ErrVoteAlreadyLeaked)

	o, err := v.VoterOutcome(voteID, "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaked, o)
	leaked, err := v.OutcomeTally(voteID, OutcomeLeaked)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), leaked)
	w, err := v.WinningOutcome(voteID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefused, w, "leaked tallies never win")
}

func TestWinningOutcomeTieBreak(t *testing.T) {
	tests := []struct {
		name     string
		weights  map[common.Address]uint64
		outcomes map[common.Address]Outcome
		want     Outcome
	}{
		{
			name:     "no reveals",
			weights:  map[common.Address]uint64{"a": 1},
			outcomes: map[common.Address]Outcome{},
			want:     OutcomeRefused,
		},
		{
			name:     "low and high tied",
			weights:  map[common.Address]uint64{"a": 2, "b": 2},
			outcomes: map[common.Address]Outcome{"a": OutcomeHigh, "b": OutcomeLow},
			want:     OutcomeLow,
		},
		{
			name:     "refused and high tied",
			weights:  map[common.Address]uint64{"a": 1, "b": 1},
			outcomes: map[common.Address]Outcome{"a": OutcomeHigh, "b": OutcomeRefused},
			want:     OutcomeRefused,
		},
		{
			name:     "strict majority",
			weights:  map[common.Address]uint64{"a": 1, "b": 1, "c": 3},
			outcomes: map[common.Address]Outcome{"a": OutcomeLow, "b": OutcomeRefused, "c": OutcomeHigh},
			want:     OutcomeHigh,
		},
		{
			name:     "weights beat heads",
			weights:  map[common.Address]uint64{"a": 1, "b": 1, "c": 3},
			outcomes: map[common.Address]Outcome{"a": OutcomeHigh, "b": OutcomeHigh, "c": OutcomeLow},
			want:     OutcomeLow,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, commitAndReveal(t, tc.weights, tc.outcomes))
		})
	}
}

func TestRandomSalts(t *testing.T) {
	weights := make(map[common.Address]uint64)
	salts := make(map[common.Address]crypto.Salt)
	for range 5 {
		voter := testutils.RandomAddress(t)
		weights[voter] = 1
		salts[voter] = testutils.RandomSalt(t)
	}
	v, owner, _ := newTestVoting(t, weights)
	for voter, s := range salts {
		require.NoError(t, v.Commit(voteID, voter, crypto.CommitmentHash(OutcomeHigh, s)))
	}
	owner.commitOpen, owner.revealOpen = false, true
	for voter := range salts {
		assert.ErrorIs(t, v.Reveal(voteID, voter, OutcomeHigh, testutils.RandomSalt(t)), ErrInvalidCommitmentSalt)
	}
	for voter, s := range salts {
		require.NoError(t, v.Reveal(voteID, voter, OutcomeHigh, s))
	}
	tally, err := v.WinningOutcomeTally(voteID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tally)
}
