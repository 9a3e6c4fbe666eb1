// Package voting implements commit-reveal votes. The owner of a vote (the
// dispute manager) decides through callbacks when commits and reveals are
// allowed and how much each voter weighs.
package voting

import (
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/safemath"
)

type Outcome = uint8

const (
	OutcomeMissing Outcome = iota
	OutcomeLeaked
	OutcomeRefused
	OutcomeLow
	OutcomeHigh
)

// ID identifies the vote of a dispute round
type ID struct {
	DisputeID uint64 `json:"disputeId"`
	RoundID   uint64 `json:"roundId"`
}

// Owner is consulted before every commit, reveal and leak. Its errors are
// returned unchanged to the caller.
type Owner interface {
	// EnsureCanCommit fails outside the commit window of the vote.
	EnsureCanCommit(id ID) error
	// EnsureVoterWeightToCommit returns the weight the voter commits with.
	EnsureVoterWeightToCommit(id ID, voter common.Address) (uint64, error)
	// EnsureCanReveal fails outside the reveal window and returns the voter weight.
	EnsureCanReveal(id ID, voter common.Address) (uint64, error)
}

type TermSource interface {
	CurrentTerm() common.TermID
}

type vote struct {
	possibleOutcomes uint8
	winning          Outcome
	votes            map[common.Address]VoteState
	tally            map[Outcome]uint64
}

// Voting is not safe for concurrent use.
type Voting struct {
	owner Owner
	terms TermSource
	sink  events.Sink
	votes map[ID]*vote
}

func New(owner Owner, terms TermSource, sink events.Sink) *Voting {
	if sink == nil {
		sink = events.Discard
	}
	return &Voting{owner: owner, terms: terms, sink: sink, votes: make(map[ID]*vote)}
}

// SetOwner replaces the owner. The owner and its votes usually reference each
// other, so one of them is wired after construction.
func (v *Voting) SetOwner(owner Owner) {
	v.owner = owner
}

func (v *Voting) emit(kind events.Kind, id ID, voter common.Address, outcome Outcome) {
	v.sink.Emit(events.Event{
		Kind:        kind,
		Term:        v.terms.CurrentTerm(),
		Dispute:     events.Round(id.DisputeID, id.RoundID),
		Participant: voter,
		Ruling:      outcome,
	})
}

// Create opens a vote with possibleOutcomes substantive outcomes.
func (v *Voting) Create(id ID, possibleOutcomes uint8) error {
	if _, ok := v.votes[id]; ok {
		return ErrVoteAlreadyExists
	}
	if possibleOutcomes < common.MinRulingOptions || possibleOutcomes > common.MaxRulingOptions {
		return ErrInvalidOutcomesAmount
	}
	v.votes[id] = &vote{
		possibleOutcomes: possibleOutcomes,
		winning:          OutcomeRefused,
		votes:            make(map[common.Address]VoteState),
		tally:            make(map[Outcome]uint64),
	}
	return nil
}

func (v *Voting) get(id ID) (*vote, error) {
	vt, ok := v.votes[id]
	if !ok {
		return nil, ErrVoteDoesNotExist
	}
	return vt, nil
}

func (vt *vote) state(voter common.Address) VoteState {
	if s, ok := vt.votes[voter]; ok {
		return s
	}
	return Unset{}
}

// Commit stores the voter commitment, see crypto.CommitmentHash.
func (v *Voting) Commit(id ID, voter common.Address, commitment crypto.Hash) error {
	vt, err := v.get(id)
	if err != nil {
		return err
	}
	if _, ok := vt.state(voter).(Unset); !ok {
		return ErrVoteAlreadyCommitted
	}
	if err := v.owner.EnsureCanCommit(id); err != nil {
		return err
	}
	weight, err := v.owner.EnsureVoterWeightToCommit(id, voter)
	if err != nil {
		return err
	}
	if weight == 0 {
		return ErrVoterWeightZero
	}
	vt.votes[voter] = Committed{Commitment: commitment}
	v.emit(events.KindVoteCommitted, id, voter, OutcomeMissing)
	return nil
}

// Leak discloses a committed vote whose outcome and salt became known. It
// can be called by anyone, during the commit window only, and the vote can
// no longer be revealed.
func (v *Voting) Leak(id ID, voter common.Address, outcome Outcome, salt crypto.Salt) error {
	vt, err := v.get(id)
	if err != nil {
		return err
	}
	if err := v.owner.EnsureCanCommit(id); err != nil {
		return err
	}
	if err := checkCommitted(vt.state(voter), outcome, salt); err != nil {
		return err
	}
	weight, err := v.owner.EnsureVoterWeightToCommit(id, voter)
	if err != nil {
		return err
	}
	tally, err := safemath.AddE(vt.tally[OutcomeLeaked], weight)
	if err != nil {
		return err
	}
	vt.tally[OutcomeLeaked] = tally
	vt.votes[voter] = Leaked{}
	v.emit(events.KindVoteLeaked, id, voter, outcome)
	return nil
}

// Reveal opens a committed vote and adds the voter weight to its outcome.
func (v *Voting) Reveal(id ID, voter common.Address, outcome Outcome, salt crypto.Salt) error {
	vt, err := v.get(id)
	if err != nil {
		return err
	}
	if !vt.isValidOutcome(outcome) {
		return ErrInvalidOutcome
	}
	if err := checkCommitted(vt.state(voter), outcome, salt); err != nil {
		return err
	}
	weight, err := v.owner.EnsureCanReveal(id, voter)
	if err != nil {
		return err
	}
	tally, err := safemath.AddE(vt.tally[outcome], weight)
	if err != nil {
		return err
	}
	vt.tally[outcome] = tally
	vt.votes[voter] = Revealed{Outcome: outcome}
	vt.updateWinning(outcome)
	v.emit(events.KindVoteRevealed, id, voter, outcome)
	return nil
}

func checkCommitted(state VoteState, outcome Outcome, salt crypto.Salt) error {
	switch s := state.(type) {
	case Committed:
		if crypto.CommitmentHash(outcome, salt) != s.Commitment {
			return ErrInvalidCommitmentSalt
		}
		return nil
	case Revealed:
		return ErrVoteAlreadyRevealed
	case Leaked:
		return ErrVoteAlreadyLeaked
	default:
		return ErrVoteNotCommitted
	}
}

// updateWinning re-elects the winner after outcome's tally grew. The greatest
// tally wins and ties go to the lower outcome, so Refused wins every tie.
func (vt *vote) updateWinning(outcome Outcome) {
	if outcome == vt.winning {
		return
	}
	t, w := vt.tally[outcome], vt.tally[vt.winning]
	if t > w || (t == w && outcome < vt.winning) {
		vt.winning = outcome
	}
}

func (vt *vote) isValidOutcome(outcome Outcome) bool {
	return outcome >= OutcomeRefused && outcome <= OutcomeRefused+vt.possibleOutcomes
}

// IsValidOutcome reports whether outcome can be revealed or appealed in the vote.
func (v *Voting) IsValidOutcome(id ID, outcome Outcome) (bool, error) {
	vt, err := v.get(id)
	if err != nil {
		return false, err
	}
	return vt.isValidOutcome(outcome), nil
}

// WinningOutcome is Refused until a substantive outcome gets a greater tally.
func (v *Voting) WinningOutcome(id ID) (Outcome, error) {
	vt, err := v.get(id)
	if err != nil {
		return OutcomeMissing, err
	}
	return vt.winning, nil
}

func (v *Voting) OutcomeTally(id ID, outcome Outcome) (uint64, error) {
	vt, err := v.get(id)
	if err != nil {
		return 0, err
	}
	return vt.tally[outcome], nil
}

// WinningOutcomeTally returns the tally of the winning outcome
func (v *Voting) WinningOutcomeTally(id ID) (uint64, error) {
	vt, err := v.get(id)
	if err != nil {
		return 0, err
	}
	return vt.tally[vt.winning], nil
}

// VoterOutcome returns the revealed outcome of a voter, OutcomeLeaked for a
// leaked vote and OutcomeMissing otherwise.
func (v *Voting) VoterOutcome(id ID, voter common.Address) (Outcome, error) {
	vt, err := v.get(id)
	if err != nil {
		return OutcomeMissing, err
	}
	switch s := vt.state(voter).(type) {
	case Revealed:
		return s.Outcome, nil
	case Leaked:
		return OutcomeLeaked, nil
	default:
		return OutcomeMissing, nil
	}
}

// VoterState returns the raw state of a voter
func (v *Voting) VoterState(id ID, voter common.Address) (VoteState, error) {
	vt, err := v.get(id)
	if err != nil {
		return nil, err
	}
	return vt.state(voter), nil
}

func (v *Voting) HasVotedInFavorOf(id ID, outcome Outcome, voter common.Address) (bool, error) {
	got, err := v.VoterOutcome(id, voter)
	if err != nil {
		return false, err
	}
	return got == outcome, nil
}

// Tally returns a copy of every non-zero tally of the vote.
func (v *Voting) Tally(id ID) (map[Outcome]uint64, error) {
	vt, err := v.get(id)
	if err != nil {
		return nil, err
	}
	out := make(map[Outcome]uint64, len(vt.tally))
	for o, t := range vt.tally {
		if t > 0 {
			out[o] = t
		}
	}
	return out, nil
}
