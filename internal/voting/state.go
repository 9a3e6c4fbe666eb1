package voting

import "github.com/eigerco/tribunal/internal/crypto"

// VoteState is the state of one juror vote: Unset, Committed, Revealed or Leaked.
type VoteState interface {
	isVoteState()
}

type Unset struct{}

type Committed struct {
	Commitment crypto.Hash
}

type Revealed struct {
	Outcome Outcome
}

// Leaked votes were disclosed by a third party during the commit window.
type Leaked struct{}

func (Unset) isVoteState()     {}
func (Committed) isVoteState() {}
func (Revealed) isVoteState()  {}
func (Leaked) isVoteState()    {}
