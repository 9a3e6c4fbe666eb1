package disputes

import (
	"fmt"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/registry"
	"github.com/eigerco/tribunal/internal/safemath"
	"github.com/eigerco/tribunal/internal/voting"
	"github.com/eigerco/tribunal/pkg/log"
)

// Draft selects up to batchSize jurors for the last round of a dispute and
// pays the caller the draft fee of every draw. The draw uses the current term
// randomness and weights, so a draft that could not run in its draft term
// runs in a later one. When the round is complete its commit period starts.
func (m *Manager) Draft(caller governance.Caller, disputeID, batchSize uint64) (Progress, error) {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return Progress{}, err
	}
	if batchSize == 0 {
		return Progress{}, ErrInvalidBatchSize
	}
	d, err := m.get(disputeID)
	if err != nil {
		return Progress{}, err
	}
	roundID := d.LastRoundID()
	r := d.Rounds[roundID]
	if d.State == StateRuled || r.drafted() {
		return Progress{}, ErrRoundAlreadyDrafted
	}
	if term < r.DraftTerm {
		return Progress{}, fmt.Errorf("%w: draft term %d, current term %d", ErrDraftTermNotReached, r.DraftTerm, term)
	}
	randomness, err := m.clock.EnsureCurrentTermRandomness()
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %w", ErrRandomnessUnavailable, err)
	}

	cfg := m.configOf(d)
	lockPerDraw, err := safemath.Pct(cfg.MinActiveBalance, cfg.Pcts.PenaltyPct)
	if err != nil {
		return Progress{}, err
	}
	batch := min(batchSize, r.JurorsTarget-r.SelectedJurors)
	// bound the fee of a full batch before anyone gets locked
	if _, err := safemath.MulE(cfg.Fees.DraftFee, batch); err != nil {
		return Progress{}, fmt.Errorf("draft fees: %w", err)
	}
	res, err := m.jurors.Draft(registry.DraftParams{
		DisputeID:            disputeID,
		Term:                 term,
		Randomness:           randomness,
		SelectedJurors:       r.SelectedJurors,
		BatchRequested:       batch,
		RoundRequestedJurors: r.JurorsTarget,
		LockPerDraw:          lockPerDraw,
		Iteration:            r.DraftIteration,
	})
	if err != nil {
		return Progress{}, err
	}
	drafted := uint64(len(res.Jurors))
	if drafted > 0 {
		fee, err := safemath.MulE(cfg.Fees.DraftFee, drafted)
		if err != nil {
			return Progress{}, fmt.Errorf("draft fees: %w", err)
		}
		if err := m.ledger.Assign(caller.Address, fee); err != nil {
			return Progress{}, fmt.Errorf("draft fees: %w", err)
		}
	}

	weights := make(map[common.Address]uint64)
	for _, addr := range res.Jurors {
		s, ok := r.JurorStates[addr]
		if !ok {
			s = &JurorState{}
			r.JurorStates[addr] = s
			r.Jurors = append(r.Jurors, addr)
		}
		s.Weight++
		weights[addr]++
	}
	r.SelectedJurors += drafted
	r.DraftIteration += res.Iterations
	for _, addr := range r.Jurors {
		if w, ok := weights[addr]; ok {
			m.emit(events.KindJurorDrafted, disputeID, roundID, addr, w, nil)
		}
	}

	if r.drafted() {
		r.DelayedTerms = uint64(term - r.DraftTerm)
		m.clock.RemoveDependingDraft(r.DraftTerm)
		if d.State == StatePreDraft {
			d.State = StateAdjudicating
		}
		m.emitRoundState(d, roundID, RoundCommitting)
	}
	log.Court.Debug().
		Uint64("dispute", disputeID).
		Uint64("round", roundID).
		Uint64("drafted", drafted).
		Uint64("selected", r.SelectedJurors).
		Uint64("target", r.JurorsTarget).
		Msg("draft")
	return Progress{Cursor: r.SelectedJurors, Remaining: r.JurorsTarget - r.SelectedJurors}, nil
}

func (m *Manager) emitRoundState(d *dispute, roundID uint64, s RoundState) {
	m.emit(events.KindRoundStateChanged, d.ID, roundID, "", 0, map[string]string{"state": s.String()})
}

// EnsureCanCommit implements voting.Owner.
func (m *Manager) EnsureCanCommit(id voting.ID) error {
	if _, err := m.clock.EnsureCurrentTerm(); err != nil {
		return err
	}
	d, _, err := m.getRound(id.DisputeID, id.RoundID)
	if err != nil {
		return err
	}
	return m.ensureRoundState(d, id.RoundID, RoundCommitting)
}

// EnsureVoterWeightToCommit implements voting.Owner. In the final round every
// juror with active balance at the draft term may vote; the weight is computed
// on the first commit and the juror's penalty is collected up front.
func (m *Manager) EnsureVoterWeightToCommit(id voting.ID, voter common.Address) (uint64, error) {
	d, r, err := m.getRound(id.DisputeID, id.RoundID)
	if err != nil {
		return 0, err
	}
	if s, ok := r.JurorStates[voter]; ok {
		return s.Weight, nil
	}
	if !r.Final {
		return 0, nil
	}

	cfg := m.configOf(d)
	active := m.jurors.ActiveBalanceAt(voter, r.DraftTerm)
	weight, err := safemath.MulDiv(active, common.FinalRoundWeightPrecision, cfg.MinActiveBalance)
	if err != nil || weight == 0 {
		return 0, err
	}
	penalty, err := safemath.Pct(active, cfg.Pcts.PenaltyPct)
	if err != nil {
		return 0, err
	}
	collected, err := safemath.AddE(r.CollectedTokens, penalty)
	if err != nil {
		return 0, err
	}
	ok, err := m.jurors.CollectTokens(voter, penalty)
	if err != nil || !ok {
		return 0, err
	}
	r.CollectedTokens = collected
	r.Jurors = append(r.Jurors, voter)
	r.JurorStates[voter] = &JurorState{Weight: weight}
	m.emit(events.KindJurorDrafted, d.ID, id.RoundID, voter, weight, map[string]string{
		"penalty": fmt.Sprint(penalty),
	})
	return weight, nil
}

// EnsureCanReveal implements voting.Owner.
func (m *Manager) EnsureCanReveal(id voting.ID, voter common.Address) (uint64, error) {
	if _, err := m.clock.EnsureCurrentTerm(); err != nil {
		return 0, err
	}
	d, r, err := m.getRound(id.DisputeID, id.RoundID)
	if err != nil {
		return 0, err
	}
	if err := m.ensureRoundState(d, id.RoundID, RoundRevealing); err != nil {
		return 0, err
	}
	if s, ok := r.JurorStates[voter]; ok {
		return s.Weight, nil
	}
	return 0, nil
}
