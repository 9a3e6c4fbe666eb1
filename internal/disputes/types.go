package disputes

import (
	"fmt"
	"slices"

	"github.com/eigerco/tribunal/internal/common"
)

type State uint8

const (
	StatePreDraft State = iota
	StateAdjudicating
	StateRuled
)

func (s State) String() string {
	switch s {
	case StatePreDraft:
		return "pre-draft"
	case StateAdjudicating:
		return "adjudicating"
	case StateRuled:
		return "ruled"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{StatePreDraft, StateAdjudicating, StateRuled} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown dispute state %q", b)
}

// RoundState is derived from the round timing, never stored.
type RoundState uint8

const (
	RoundInvalid RoundState = iota
	RoundCommitting
	RoundRevealing
	RoundAppealing
	RoundConfirmingAppeal
	RoundEnded
)

func (s RoundState) String() string {
	switch s {
	case RoundInvalid:
		return "invalid"
	case RoundCommitting:
		return "committing"
	case RoundRevealing:
		return "revealing"
	case RoundAppealing:
		return "appealing"
	case RoundConfirmingAppeal:
		return "confirming_appeal"
	case RoundEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s RoundState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RoundState) UnmarshalText(b []byte) error {
	for v := RoundInvalid; v <= RoundEnded; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown round state %q", b)
}

type Evidence struct {
	Submitter common.Address `json:"submitter"`
	Term      common.TermID  `json:"term"`
	Data      []byte         `json:"data"`
}

type Dispute struct {
	ID              uint64         `json:"id"`
	Subject         common.Address `json:"subject"`
	PossibleRulings uint8          `json:"possibleRulings"`
	Metadata        string         `json:"metadata,omitempty"`
	State           State          `json:"state"`
	FinalRuling     uint8          `json:"finalRuling"`
	CreateTerm      common.TermID  `json:"createTerm"`
	RulingExecuted  bool           `json:"rulingExecuted"`
	Evidence        []Evidence     `json:"evidence,omitempty"`
	Rounds          []*Round       `json:"rounds"`
}

// LastRoundID returns the index of the most recent round
func (d *Dispute) LastRoundID() uint64 {
	return uint64(len(d.Rounds) - 1)
}

func (d *Dispute) clone() Dispute {
	c := *d
	c.Evidence = slices.Clone(d.Evidence)
	c.Rounds = make([]*Round, len(d.Rounds))
	for i, r := range d.Rounds {
		rc := r.clone()
		c.Rounds[i] = &rc
	}
	return c
}

// JurorState is a juror's seat in a round.
type JurorState struct {
	// Weight is the number of draws in a regular round and the stake weight
	// in the final round.
	Weight   uint64 `json:"weight"`
	Rewarded bool   `json:"rewarded"`
}

type Appeal struct {
	Maker          common.Address `json:"maker"`
	AppealedRuling uint8          `json:"appealedRuling"`
	Taker          common.Address `json:"taker,omitempty"`
	OpposedRuling  uint8          `json:"opposedRuling,omitempty"`
	Deposit        uint64         `json:"deposit"`
	ConfirmDeposit uint64         `json:"confirmDeposit,omitempty"`

	// NextRoundFees is what the round created by a confirmation costs. It is
	// paid out of the two deposits.
	NextRoundFees      uint64 `json:"nextRoundFees"`
	NextRoundJurorFees uint64 `json:"nextRoundJurorFees"`
	NextRoundJurors    uint64 `json:"nextRoundJurors"`
	NextRoundIsFinal   bool   `json:"nextRoundIsFinal"`
	Settled            bool   `json:"settled"`
}

func (a *Appeal) confirmed() bool {
	return !a.Taker.IsZero()
}

type Round struct {
	DraftTerm    common.TermID `json:"draftTerm"`
	DelayedTerms uint64        `json:"delayedTerms"`
	Final        bool          `json:"final"`
	JurorsTarget uint64        `json:"jurorsTarget"`
	// SelectedJurors counts draws so far; a regular round is drafted once it reaches JurorsTarget.
	SelectedJurors uint64 `json:"selectedJurors"`
	DraftIteration uint64 `json:"draftIteration"`
	JurorFees      uint64 `json:"jurorFees"`

	Jurors      []common.Address               `json:"jurors"`
	JurorStates map[common.Address]*JurorState `json:"jurorStates"`

	CollectedTokens  uint64 `json:"collectedTokens"`
	CoherentWeight   uint64 `json:"coherentWeight"`
	SettledPenalties bool   `json:"settledPenalties"`
	SettledJurors    uint64 `json:"settledJurors"`

	RewardedWeight uint64 `json:"rewardedWeight"`
	RewardedTokens uint64 `json:"rewardedTokens"`
	RewardedFees   uint64 `json:"rewardedFees"`

	Appeal *Appeal `json:"appeal,omitempty"`
}

func (r *Round) drafted() bool {
	return r.Final || r.SelectedJurors == r.JurorsTarget
}

// start is the first term of the commit period.
func (r *Round) start() common.TermID {
	return r.DraftTerm + common.TermID(r.DelayedTerms)
}

func (r *Round) clone() Round {
	c := *r
	c.Jurors = slices.Clone(r.Jurors)
	c.JurorStates = make(map[common.Address]*JurorState, len(r.JurorStates))
	for k, v := range r.JurorStates {
		s := *v
		c.JurorStates[k] = &s
	}
	if r.Appeal != nil {
		a := *r.Appeal
		c.Appeal = &a
	}
	return c
}

// Progress of a resumable batch operation: Cursor units are done and
// Remaining are left.
type Progress struct {
	Cursor    uint64 `json:"cursor"`
	Remaining uint64 `json:"remaining"`
}

// Done reports whether nothing is left
func (p Progress) Done() bool {
	return p.Remaining == 0
}
