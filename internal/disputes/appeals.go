package disputes

import (
	"fmt"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/safemath"
	"github.com/eigerco/tribunal/pkg/log"
)

type nextRound struct {
	jurors    uint64
	jurorFees uint64
	totalFees uint64
	final     bool
}

// nextRoundOf sizes the round an appeal of roundID would create. Regular
// rounds grow by the appeal step factor and always seat an odd number of
// jurors. After the last regular round every active juror may vote in the
// final round, weighted by stake, for reduced juror fees and no draft or
// settle fees.
func (m *Manager) nextRoundOf(cfg config.CourtConfig, r *Round, roundID uint64, term common.TermID) (nextRound, error) {
	if roundID+1 < cfg.RoundParams.MaxRegularAppealRounds {
		jurors, err := safemath.MulE(r.JurorsTarget, cfg.RoundParams.AppealStepFactor)
		if err != nil {
			return nextRound{}, err
		}
		if jurors%2 == 0 {
			jurors++
		}
		jurorFees, err := safemath.MulE(cfg.Fees.JurorFee, jurors)
		if err != nil {
			return nextRound{}, err
		}
		total, err := regularRoundFees(cfg, jurors)
		if err != nil {
			return nextRound{}, err
		}
		return nextRound{jurors: jurors, jurorFees: jurorFees, totalFees: total}, nil
	}

	jurors, err := safemath.MulDiv(m.jurors.TotalActiveBalanceAt(term), common.FinalRoundWeightPrecision, cfg.MinActiveBalance)
	if err != nil {
		return nextRound{}, err
	}
	fees, err := safemath.MulDiv(cfg.Fees.JurorFee, jurors, common.FinalRoundWeightPrecision)
	if err != nil {
		return nextRound{}, err
	}
	if fees, err = safemath.Pct(fees, safemath.PctBase-cfg.Pcts.FinalRoundReduction); err != nil {
		return nextRound{}, err
	}
	return nextRound{jurors: jurors, jurorFees: fees, totalFees: fees, final: true}, nil
}

func (m *Manager) ensureValidRuling(disputeID, roundID uint64, ruling uint8) error {
	ok, err := m.voting.IsValidOutcome(voteID(disputeID, roundID), ruling)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidAppealRuling, ruling)
	}
	return nil
}

// CreateAppeal challenges the outcome of a round during its appeal period.
// The maker deposits a multiple of what the next round costs.
func (m *Manager) CreateAppeal(maker common.Address, disputeID, roundID uint64, ruling uint8) error {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	d, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return err
	}
	if err := m.ensureRoundState(d, roundID, RoundAppealing); err != nil {
		return err
	}
	if r.Appeal != nil {
		return ErrAppealAlreadyExists
	}
	if err := m.ensureValidRuling(disputeID, roundID, ruling); err != nil {
		return err
	}
	winning, err := m.voting.WinningOutcome(voteID(disputeID, roundID))
	if err != nil {
		return err
	}
	if ruling == winning {
		return fmt.Errorf("%w: %d already won the round", ErrInvalidAppealRuling, ruling)
	}

	cfg := m.configOf(d)
	next, err := m.nextRoundOf(cfg, r, roundID, term)
	if err != nil {
		return err
	}
	deposit, err := safemath.Pct(next.totalFees, cfg.AppealCollateral.AppealCollateralFactor)
	if err != nil {
		return err
	}
	if err := m.ledger.Deposit(maker, deposit); err != nil {
		return fmt.Errorf("appeal deposit: %w", err)
	}
	r.Appeal = &Appeal{
		Maker:              maker,
		AppealedRuling:     ruling,
		Deposit:            deposit,
		NextRoundFees:      next.totalFees,
		NextRoundJurorFees: next.jurorFees,
		NextRoundJurors:    next.jurors,
		NextRoundIsFinal:   next.final,
	}
	m.sink.Emit(events.Event{
		Kind:        events.KindRulingAppealed,
		Term:        term,
		Dispute:     events.Round(disputeID, roundID),
		Participant: maker,
		Amount:      deposit,
		Ruling:      ruling,
	})
	return nil
}

// ConfirmAppeal backs another ruling against an appeal during the
// confirmation period and creates the next round.
func (m *Manager) ConfirmAppeal(taker common.Address, disputeID, roundID uint64, ruling uint8) error {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	d, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return err
	}
	if err := m.ensureRoundState(d, roundID, RoundConfirmingAppeal); err != nil {
		return err
	}
	a := r.Appeal
	if a.confirmed() {
		return ErrAppealAlreadyConfirmed
	}
	if err := m.ensureValidRuling(disputeID, roundID, ruling); err != nil {
		return err
	}
	if ruling == a.AppealedRuling {
		return fmt.Errorf("%w: %d is the appealed ruling", ErrInvalidAppealRuling, ruling)
	}

	cfg := m.configOf(d)
	deposit, err := safemath.Pct(a.NextRoundFees, cfg.AppealCollateral.AppealConfirmCollateralFactor)
	if err != nil {
		return err
	}
	if err := m.ledger.Deposit(taker, deposit); err != nil {
		return fmt.Errorf("appeal confirm deposit: %w", err)
	}
	a.Taker = taker
	a.OpposedRuling = ruling
	a.ConfirmDeposit = deposit

	draftTerm := m.adjudicationEnd(d, r)
	if err := m.createRound(d, draftTerm, a.NextRoundJurors, a.NextRoundJurorFees, a.NextRoundIsFinal); err != nil {
		return err
	}
	newRoundID := d.LastRoundID()

	log.Court.Debug().
		Uint64("dispute", disputeID).
		Uint64("round", newRoundID).
		Bool("final", a.NextRoundIsFinal).
		Uint64("jurors", a.NextRoundJurors).
		Msg("appeal confirmed")
	m.sink.Emit(events.Event{
		Kind:        events.KindRulingAppealConfirmed,
		Term:        term,
		Dispute:     events.Round(disputeID, roundID),
		Participant: taker,
		Amount:      deposit,
		Ruling:      ruling,
		Data: map[string]string{
			"nextRound": fmt.Sprint(newRoundID),
			"draftTerm": fmt.Sprint(uint64(draftTerm)),
		},
	})
	m.emitRoundState(d, roundID, RoundEnded)
	return nil
}
