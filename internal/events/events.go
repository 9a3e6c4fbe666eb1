// Package events defines the structured records every court state change
// emits. The records carry enough identifying fields for a read-only indexer
// to rebuild the full history of disputes and juror balances.
package events

import (
	"sync"

	"github.com/eigerco/tribunal/internal/common"
)

type Kind string

const (
	KindHeartbeat        Kind = "heartbeat"
	KindStartTimeDelayed Kind = "start_time_delayed"
	KindConfigScheduled  Kind = "config_scheduled"

	KindDisputeCreated           Kind = "dispute_created"
	KindEvidenceSubmitted        Kind = "evidence_submitted"
	KindEvidencePeriodClosed     Kind = "evidence_period_closed"
	KindJurorDrafted             Kind = "juror_drafted"
	KindRoundStateChanged        Kind = "round_state_changed"
	KindRulingAppealed           Kind = "ruling_appealed"
	KindRulingAppealConfirmed    Kind = "ruling_appeal_confirmed"
	KindRulingComputed           Kind = "ruling_computed"
	KindRulingExecuted           Kind = "ruling_executed"
	KindPenaltiesSettled         Kind = "penalties_settled"
	KindRewardSettled            Kind = "reward_settled"
	KindAppealDepositSettled     Kind = "appeal_deposit_settled"
	KindFeesRefunded             Kind = "fees_refunded"
	KindVoteCommitted            Kind = "vote_committed"
	KindVoteRevealed             Kind = "vote_revealed"
	KindVoteLeaked               Kind = "vote_leaked"
	KindJurorStaked              Kind = "juror_staked"
	KindJurorUnstaked            Kind = "juror_unstaked"
	KindJurorActivated           Kind = "juror_activated"
	KindJurorDeactivationRequest Kind = "juror_deactivation_requested"
	KindJurorDeactivationDone    Kind = "juror_deactivation_processed"
	KindJurorLocked              Kind = "juror_balance_locked"
	KindJurorUnlocked            Kind = "juror_balance_unlocked"
	KindJurorSlashed             Kind = "juror_slashed"
	KindJurorTokensCollected     Kind = "juror_tokens_collected"
	KindJurorRewarded            Kind = "juror_rewarded"
	KindWithdrawalsLocked        Kind = "juror_withdrawals_locked"
	KindTokensBurned             Kind = "tokens_burned"
)

// DisputeRef pins an event to a dispute round
type DisputeRef struct {
	DisputeID uint64 `json:"disputeId"`
	RoundID   uint64 `json:"roundId"`
}

// Event is one state change. Seq is assigned by the sink that stores it.
type Event struct {
	Seq         uint64            `json:"seq"`
	Kind        Kind              `json:"kind"`
	Term        common.TermID     `json:"term"`
	Dispute     *DisputeRef       `json:"dispute,omitempty"`
	Participant common.Address    `json:"participant,omitempty"`
	Amount      uint64            `json:"amount,omitempty"`
	Ruling      uint8             `json:"ruling,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// Round is a convenience constructor for the dispute reference of an event
func Round(disputeID, roundID uint64) *DisputeRef {
	return &DisputeRef{DisputeID: disputeID, RoundID: roundID}
}

// Sink receives events in emission order. Emit must not fail the state
// change that produced the event, so sinks handle their own errors.
type Sink interface {
	Emit(e Event)
}

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event
var Discard Sink = discard{}

// Multi fans every event out to all sinks
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = uint64(len(r.events))
	r.events = append(r.events, e)
}

// Events returns a copy of all recorded events
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Since returns events with Seq >= from, at most limit of them (0 = no limit).
func (r *Recorder) Since(from uint64, limit int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if from >= uint64(len(r.events)) {
		return nil
	}
	tail := r.events[from:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	out := make([]Event, len(tail))
	copy(out, tail)
	return out
}

// OfKind returns the recorded events of kind k
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
