// Package config holds the court parameters. Parameters are versioned by
// term: a change is scheduled for a future term and every past term keeps
// resolving to the parameters that were in force at that term.
package config

import (
	"errors"
	"fmt"

	"github.com/eigerco/tribunal/internal/checkpointing"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/safemath"
)

const (
	// MaxRegularAppealRoundsLimit caps the number of regular rounds a dispute may have.
	MaxRegularAppealRoundsLimit = 10
	// MaxAdjudicationTerms caps any single adjudication phase duration.
	MaxAdjudicationTerms = 8670
)

var (
	ErrBadConfig            = errors.New("bad court config")
	ErrTooOldTermForConfig  = errors.New("config change term must be in the future")
	ErrConfigChangeOutdated = errors.New("config change precedes an already scheduled change")
)

// Fees are paid by whoever creates a dispute or an appeal, per juror.
type Fees struct {
	JurorFee  uint64 `mapstructure:"juror_fee" json:"jurorFee"`
	DraftFee  uint64 `mapstructure:"draft_fee" json:"draftFee"`
	SettleFee uint64 `mapstructure:"settle_fee" json:"settleFee"`
}

// Durations are expressed in terms.
type Durations struct {
	EvidenceTerms      uint64 `mapstructure:"evidence_terms" json:"evidenceTerms"`
	CommitTerms        uint64 `mapstructure:"commit_terms" json:"commitTerms"`
	RevealTerms        uint64 `mapstructure:"reveal_terms" json:"revealTerms"`
	AppealTerms        uint64 `mapstructure:"appeal_terms" json:"appealTerms"`
	AppealConfirmTerms uint64 `mapstructure:"appeal_confirm_terms" json:"appealConfirmTerms"`
}

// Pcts are expressed over safemath.PctBase.
type Pcts struct {
	// PenaltyPct of the minimum active balance is locked per draft and slashed on incoherence.
	PenaltyPct uint64 `mapstructure:"penalty_pct" json:"penaltyPct"`
	// FinalRoundReduction discounts the juror fees of the final round.
	FinalRoundReduction uint64 `mapstructure:"final_round_reduction" json:"finalRoundReduction"`
}

type RoundParams struct {
	FirstRoundJurorsNumber uint64 `mapstructure:"first_round_jurors_number" json:"firstRoundJurorsNumber"`
	AppealStepFactor       uint64 `mapstructure:"appeal_step_factor" json:"appealStepFactor"`
	MaxRegularAppealRounds uint64 `mapstructure:"max_regular_appeal_rounds" json:"maxRegularAppealRounds"`
	// FinalRoundLockTerms keeps final round winners from withdrawing right after being rewarded.
	FinalRoundLockTerms uint64 `mapstructure:"final_round_lock_terms" json:"finalRoundLockTerms"`
}

// AppealCollateral factors are expressed over safemath.PctBase and applied to the next round fees.
type AppealCollateral struct {
	AppealCollateralFactor        uint64 `mapstructure:"appeal_collateral_factor" json:"appealCollateralFactor"`
	AppealConfirmCollateralFactor uint64 `mapstructure:"appeal_confirm_collateral_factor" json:"appealConfirmCollateralFactor"`
}

type CourtConfig struct {
	Fees             Fees             `mapstructure:"fees" json:"fees"`
	Durations        Durations        `mapstructure:"durations" json:"durations"`
	Pcts             Pcts             `mapstructure:"pcts" json:"pcts"`
	RoundParams      RoundParams      `mapstructure:"round_params" json:"roundParams"`
	AppealCollateral AppealCollateral `mapstructure:"appeal_collateral" json:"appealCollateral"`
	MinActiveBalance uint64           `mapstructure:"min_active_balance" json:"minActiveBalance"`
}

// Default mirrors the parameters the court is usually deployed with.
func Default() CourtConfig {
	return CourtConfig{
		Fees: Fees{JurorFee: 10, DraftFee: 3, SettleFee: 2},
		Durations: Durations{
			EvidenceTerms:      4,
			CommitTerms:        2,
			RevealTerms:        2,
			AppealTerms:        2,
			AppealConfirmTerms: 2,
		},
		Pcts: Pcts{PenaltyPct: 1000, FinalRoundReduction: 5000},
		RoundParams: RoundParams{
			FirstRoundJurorsNumber: 3,
			AppealStepFactor:       3,
			MaxRegularAppealRounds: 2,
			FinalRoundLockTerms:    4,
		},
		AppealCollateral: AppealCollateral{
			AppealCollateralFactor:        30_000,
			AppealConfirmCollateralFactor: 20_000,
		},
		MinActiveBalance: 100,
	}
}

// Validate rejects parameter sets the court cannot operate with.
func (c CourtConfig) Validate() error {
	if c.Pcts.PenaltyPct > safemath.PctBase {
		return fmt.Errorf("%w: penalty pct above 100%%", ErrBadConfig)
	}
	if c.Pcts.FinalRoundReduction > safemath.PctBase {
		return fmt.Errorf("%w: final round reduction above 100%%", ErrBadConfig)
	}
	if c.RoundParams.FirstRoundJurorsNumber == 0 {
		return fmt.Errorf("%w: first round jurors number is zero", ErrBadConfig)
	}
	if c.RoundParams.AppealStepFactor == 0 {
		return fmt.Errorf("%w: appeal step factor is zero", ErrBadConfig)
	}
	if c.RoundParams.MaxRegularAppealRounds == 0 || c.RoundParams.MaxRegularAppealRounds > MaxRegularAppealRoundsLimit {
		return fmt.Errorf("%w: max regular appeal rounds must be in [1, %d]", ErrBadConfig, MaxRegularAppealRoundsLimit)
	}
	d := c.Durations
	for name, v := range map[string]uint64{
		"evidence": d.EvidenceTerms, "commit": d.CommitTerms, "reveal": d.RevealTerms,
		"appeal": d.AppealTerms, "appeal confirm": d.AppealConfirmTerms,
	} {
		if v == 0 || v > MaxAdjudicationTerms {
			return fmt.Errorf("%w: %s terms must be in [1, %d]", ErrBadConfig, name, MaxAdjudicationTerms)
		}
	}
	// Each side of an appeal must be able to fund the next round on its own.
	if c.AppealCollateral.AppealCollateralFactor < safemath.PctBase || c.AppealCollateral.AppealConfirmCollateralFactor < safemath.PctBase {
		return fmt.Errorf("%w: appeal collateral factors must be at least 100%%", ErrBadConfig)
	}
	if c.MinActiveBalance == 0 {
		return fmt.Errorf("%w: min active balance is zero", ErrBadConfig)
	}
	// lock taken per regular round draw
	if _, err := safemath.Pct(c.MinActiveBalance, c.Pcts.PenaltyPct); err != nil {
		return fmt.Errorf("%w: penalty amount: %v", ErrBadConfig, err)
	}
	return nil
}

// Schedule is the term-indexed history of court configs.
type Schedule struct {
	history checkpointing.History[CourtConfig]
}

// NewSchedule creates a schedule whose initial config applies from term 0.
func NewSchedule(initial CourtConfig) (*Schedule, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &Schedule{}
	_ = s.history.Add(0, initial)
	return s, nil
}

// At returns the config in force at term
func (s *Schedule) At(term common.TermID) CourtConfig {
	return s.history.Get(uint64(term))
}

// NextChangeTerm returns the term of the most recently scheduled config
func (s *Schedule) NextChangeTerm() common.TermID {
	t, _ := s.history.LastTime()
	return common.TermID(t)
}

// Set schedules cfg to take effect from fromTerm. Only config governors may
// call it, and only for a term after currentTerm. Scheduling again for the
// same term replaces the pending change.
func (s *Schedule) Set(caller governance.Caller, currentTerm, fromTerm common.TermID, cfg CourtConfig) error {
	if err := caller.Require(governance.RoleConfigGovernor); err != nil {
		return err
	}
	if fromTerm <= currentTerm {
		return ErrTooOldTermForConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.history.Add(uint64(fromTerm), cfg); err != nil {
		return ErrConfigChangeOutdated
	}
	return nil
}
