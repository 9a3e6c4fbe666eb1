package disputes

import (
	"fmt"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/safemath"
	"github.com/eigerco/tribunal/pkg/log"
)

// ComputeRuling returns the final ruling of a dispute, computing it the first
// time it is asked once the last round ended. The final ruling is the winning
// outcome of the last round.
func (m *Manager) ComputeRuling(disputeID uint64) (uint8, error) {
	if _, err := m.clock.EnsureCurrentTerm(); err != nil {
		return 0, err
	}
	d, err := m.get(disputeID)
	if err != nil {
		return 0, err
	}
	return m.ensureFinalRuling(d)
}

func (m *Manager) ensureFinalRuling(d *dispute) (uint8, error) {
	if d.State == StateRuled {
		return d.FinalRuling, nil
	}
	lastID := d.LastRoundID()
	if err := m.ensureRoundState(d, lastID, RoundEnded); err != nil {
		return 0, err
	}
	ruling, err := m.voting.WinningOutcome(voteID(d.ID, lastID))
	if err != nil {
		return 0, err
	}
	d.FinalRuling = ruling
	d.State = StateRuled
	m.emit(events.KindRulingComputed, d.ID, lastID, d.Subject, 0, map[string]string{
		"ruling": fmt.Sprint(ruling),
	})
	return ruling, nil
}

// ExecuteRuling hands the final ruling to the dispute subject. It can only
// happen once.
func (m *Manager) ExecuteRuling(disputeID uint64) error {
	ruling, err := m.ComputeRuling(disputeID)
	if err != nil {
		return err
	}
	d := m.disputes[disputeID]
	if d.RulingExecuted {
		return ErrRulingAlreadyExecuted
	}
	d.RulingExecuted = true
	d.subject.Rule(disputeID, ruling)
	m.sink.Emit(events.Event{
		Kind:        events.KindRulingExecuted,
		Term:        m.clock.CurrentTerm(),
		Dispute:     events.Round(disputeID, d.LastRoundID()),
		Participant: d.Subject,
		Ruling:      ruling,
	})
	return nil
}

// SettlePenalties settles up to batchSize jurors of a round, in draft order.
// Coherent jurors get their lock back; the others are slashed by it. The
// caller earns the settle fee of every settled draw. Rounds are settled in
// order, and the final round is settled in one call since its penalties were
// collected at commit time.
func (m *Manager) SettlePenalties(caller governance.Caller, disputeID, roundID, batchSize uint64) (Progress, error) {
	if _, err := m.clock.EnsureCurrentTerm(); err != nil {
		return Progress{}, err
	}
	d, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return Progress{}, err
	}
	if r.SettledPenalties {
		return Progress{}, ErrRoundAlreadySettled
	}
	if roundID > 0 && !d.Rounds[roundID-1].SettledPenalties {
		return Progress{}, ErrPreviousRoundNotSettled
	}
	if !r.Final && batchSize == 0 {
		return Progress{}, ErrInvalidBatchSize
	}
	if _, err := m.ensureFinalRuling(d); err != nil {
		return Progress{}, err
	}
	id := voteID(disputeID, roundID)
	winning, err := m.voting.WinningOutcome(id)
	if err != nil {
		return Progress{}, err
	}

	if !r.Final {
		cfg := m.configOf(d)
		lockPerDraw, err := safemath.Pct(cfg.MinActiveBalance, cfg.Pcts.PenaltyPct)
		if err != nil {
			return Progress{}, err
		}
		from := r.SettledJurors
		to := min(from+batchSize, uint64(len(r.Jurors)))
		batch := r.Jurors[from:to]
		penalties := make([]uint64, len(batch))
		coherent := make([]bool, len(batch))
		var draws uint64
		for i, addr := range batch {
			w := r.JurorStates[addr].Weight
			if draws, err = safemath.AddE(draws, w); err != nil {
				return Progress{}, err
			}
			if penalties[i], err = safemath.MulE(lockPerDraw, w); err != nil {
				return Progress{}, err
			}
			if coherent[i], err = m.voting.HasVotedInFavorOf(id, winning, addr); err != nil {
				return Progress{}, err
			}
		}
		settleFees, err := safemath.MulE(cfg.Fees.SettleFee, draws)
		if err != nil {
			return Progress{}, fmt.Errorf("settle fees: %w", err)
		}
		collected, err := m.jurors.SlashOrUnlock(batch, penalties, coherent)
		if err != nil {
			return Progress{}, err
		}
		if draws > 0 {
			if err := m.ledger.Assign(caller.Address, settleFees); err != nil {
				return Progress{}, fmt.Errorf("settle fees: %w", err)
			}
		}
		r.CollectedTokens += collected
		r.SettledJurors = to
		for i, addr := range batch {
			if !coherent[i] {
				m.emit(events.KindPenaltiesSettled, disputeID, roundID, addr, penalties[i], nil)
			}
		}
	}

	remaining := uint64(len(r.Jurors)) - r.SettledJurors
	if r.Final {
		r.SettledJurors, remaining = uint64(len(r.Jurors)), 0
	}
	if remaining == 0 {
		if err := m.completeSettlement(d, roundID, r); err != nil {
			return Progress{}, err
		}
	}
	return Progress{Cursor: r.SettledJurors, Remaining: remaining}, nil
}

// completeSettlement closes the penalty settlement of a round. When nobody
// voted for the winning outcome there is nobody to reward: the collected
// tokens are burned and the juror fees go back to whoever paid them.
func (m *Manager) completeSettlement(d *dispute, roundID uint64, r *Round) error {
	id := voteID(d.ID, roundID)
	coherent, err := m.voting.WinningOutcomeTally(id)
	if err != nil {
		return err
	}
	if coherent == 0 {
		if r.CollectedTokens > 0 {
			if err := m.jurors.BurnTokens(r.CollectedTokens); err != nil {
				return err
			}
		}
		if err := m.refundJurorFees(d, roundID, r); err != nil {
			return err
		}
	}
	r.CoherentWeight = coherent
	r.SettledPenalties = true

	log.Court.Debug().
		Uint64("dispute", d.ID).
		Uint64("round", roundID).
		Uint64("collected", r.CollectedTokens).
		Uint64("coherentWeight", coherent).
		Msg("penalties settled")
	m.emit(events.KindPenaltiesSettled, d.ID, roundID, "", r.CollectedTokens, map[string]string{
		"coherentWeight": fmt.Sprint(coherent),
	})
	return nil
}

// refundJurorFees returns the juror fees of a round to the subject for the
// first round, or in halves to the two sides of the appeal that funded it.
func (m *Manager) refundJurorFees(d *dispute, roundID uint64, r *Round) error {
	if r.JurorFees == 0 {
		return nil
	}
	if roundID == 0 {
		if err := m.ledger.Assign(d.Subject, r.JurorFees); err != nil {
			return err
		}
		m.emit(events.KindFeesRefunded, d.ID, roundID, d.Subject, r.JurorFees, nil)
		return nil
	}
	a := d.Rounds[roundID-1].Appeal
	half := r.JurorFees / 2
	if err := m.ledger.Assign(a.Maker, half); err != nil {
		return err
	}
	if err := m.ledger.Assign(a.Taker, r.JurorFees-half); err != nil {
		return err
	}
	m.emit(events.KindFeesRefunded, d.ID, roundID, a.Maker, half, nil)
	m.emit(events.KindFeesRefunded, d.ID, roundID, a.Taker, r.JurorFees-half, nil)
	return nil
}

// SettleReward pays a coherent juror its share of the tokens collected from
// the incoherent jurors and of the juror fees, pro rata to its weight. The
// last juror to claim gets the rounding remainder. Final round rewards also
// lock the juror's withdrawals for a while.
func (m *Manager) SettleReward(disputeID, roundID uint64, juror common.Address) error {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	d, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return err
	}
	if !r.SettledPenalties {
		return ErrRoundNotSettled
	}
	s, ok := r.JurorStates[juror]
	if !ok || s.Weight == 0 {
		return ErrWontRewardNonDraftedJuror
	}
	if s.Rewarded {
		return ErrJurorAlreadyRewarded
	}
	id := voteID(disputeID, roundID)
	winning, err := m.voting.WinningOutcome(id)
	if err != nil {
		return err
	}
	coherent, err := m.voting.HasVotedInFavorOf(id, winning, juror)
	if err != nil {
		return err
	}
	if !coherent {
		return ErrWontRewardIncoherentJuror
	}

	tokens, fees := r.CollectedTokens-r.RewardedTokens, r.JurorFees-r.RewardedFees
	if r.RewardedWeight+s.Weight < r.CoherentWeight {
		if tokens, err = safemath.MulDiv(r.CollectedTokens, s.Weight, r.CoherentWeight); err != nil {
			return err
		}
		if fees, err = safemath.MulDiv(r.JurorFees, s.Weight, r.CoherentWeight); err != nil {
			return err
		}
	}
	if err := m.jurors.AssignTokens(juror, tokens); err != nil {
		return err
	}
	if fees > 0 {
		if err := m.ledger.Assign(juror, fees); err != nil {
			return err
		}
	}
	if r.Final {
		lockTerms := m.configOf(d).RoundParams.FinalRoundLockTerms
		if err := m.jurors.LockWithdrawals(juror, term+common.TermID(lockTerms)); err != nil {
			return err
		}
	}
	s.Rewarded = true
	r.RewardedWeight += s.Weight
	r.RewardedTokens += tokens
	r.RewardedFees += fees

	m.emit(events.KindRewardSettled, disputeID, roundID, juror, tokens, map[string]string{
		"fees": fmt.Sprint(fees),
	})
	return nil
}

// SettleAppealDeposit pays back the deposits of a round appeal. An appeal
// that was never confirmed is refunded to its maker. Otherwise the side whose
// ruling won gets both deposits minus the fees of the round they funded; if
// neither side won, each gets its own deposit minus half those fees.
func (m *Manager) SettleAppealDeposit(disputeID, roundID uint64) error {
	if _, err := m.clock.EnsureCurrentTerm(); err != nil {
		return err
	}
	d, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return err
	}
	if !r.SettledPenalties {
		return ErrRoundNotSettled
	}
	a := r.Appeal
	if a == nil {
		return ErrNoAppeal
	}
	if a.Settled {
		return ErrAppealAlreadySettled
	}

	type payout struct {
		to     common.Address
		amount uint64
	}
	var payouts []payout
	switch {
	case !a.confirmed():
		payouts = []payout{{a.Maker, a.Deposit}}
	case d.FinalRuling == a.AppealedRuling:
		payouts = []payout{{a.Maker, a.Deposit + a.ConfirmDeposit - a.NextRoundFees}}
	case d.FinalRuling == a.OpposedRuling:
		payouts = []payout{{a.Taker, a.Deposit + a.ConfirmDeposit - a.NextRoundFees}}
	default:
		half := a.NextRoundFees / 2
		payouts = []payout{
			{a.Maker, a.Deposit - half},
			{a.Taker, a.ConfirmDeposit - (a.NextRoundFees - half)},
		}
	}
	for _, p := range payouts {
		if p.amount == 0 {
			continue
		}
		if err := m.ledger.Assign(p.to, p.amount); err != nil {
			return err
		}
		m.emit(events.KindAppealDepositSettled, disputeID, roundID, p.to, p.amount, nil)
	}
	a.Settled = true
	return nil
}
