package court

import (
	"fmt"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/voting"
)

// mutate runs fn under the court lock and snapshots the dispute afterwards,
// whether fn failed or not.
func (c *Court) mutate(disputeID uint64, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := fn()
	c.snapshot(disputeID)
	return err
}

// CreateDispute raises a dispute for a registered subject. The caller must
// be the subject itself.
func (c *Court) CreateDispute(caller governance.Caller, possibleRulings uint8, metadata string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subject, ok := c.subjects[caller.Address]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSubjectNotRegistered, caller.Address)
	}
	id, err := c.disputes.CreateDispute(subject, possibleRulings, metadata)
	if err != nil {
		return 0, err
	}
	c.snapshot(id)
	return id, nil
}

func (c *Court) SubmitEvidence(caller governance.Caller, disputeID uint64, submitter common.Address, evidence []byte) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.SubmitEvidence(caller, disputeID, submitter, evidence)
	})
}

func (c *Court) CloseEvidencePeriod(caller governance.Caller, disputeID uint64) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.CloseEvidencePeriod(caller, disputeID)
	})
}

func (c *Court) Draft(caller governance.Caller, disputeID, batchSize uint64) (p disputes.Progress, err error) {
	err = c.mutate(disputeID, func() error {
		p, err = c.disputes.Draft(caller, disputeID, batchSize)
		return err
	})
	return p, err
}

func (c *Court) Commit(caller governance.Caller, disputeID, roundID uint64, commitment crypto.Hash) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.Voting().Commit(voting.ID{DisputeID: disputeID, RoundID: roundID}, caller.Address, commitment)
	})
}

// Leak exposes the vote of juror; anyone who learned its outcome and salt may call it.
func (c *Court) Leak(disputeID, roundID uint64, juror common.Address, outcome voting.Outcome, salt crypto.Salt) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.Voting().Leak(voting.ID{DisputeID: disputeID, RoundID: roundID}, juror, outcome, salt)
	})
}

func (c *Court) Reveal(caller governance.Caller, disputeID, roundID uint64, outcome voting.Outcome, salt crypto.Salt) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.Voting().Reveal(voting.ID{DisputeID: disputeID, RoundID: roundID}, caller.Address, outcome, salt)
	})
}

func (c *Court) CreateAppeal(caller governance.Caller, disputeID, roundID uint64, ruling uint8) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.CreateAppeal(caller.Address, disputeID, roundID, ruling)
	})
}

func (c *Court) ConfirmAppeal(caller governance.Caller, disputeID, roundID uint64, ruling uint8) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.ConfirmAppeal(caller.Address, disputeID, roundID, ruling)
	})
}

func (c *Court) ComputeRuling(disputeID uint64) (ruling uint8, err error) {
	err = c.mutate(disputeID, func() error {
		ruling, err = c.disputes.ComputeRuling(disputeID)
		return err
	})
	return ruling, err
}

func (c *Court) ExecuteRuling(disputeID uint64) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.ExecuteRuling(disputeID)
	})
}

func (c *Court) SettlePenalties(caller governance.Caller, disputeID, roundID, batchSize uint64) (p disputes.Progress, err error) {
	err = c.mutate(disputeID, func() error {
		p, err = c.disputes.SettlePenalties(caller, disputeID, roundID, batchSize)
		return err
	})
	return p, err
}

func (c *Court) SettleReward(disputeID, roundID uint64, juror common.Address) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.SettleReward(disputeID, roundID, juror)
	})
}

func (c *Court) SettleAppealDeposit(disputeID, roundID uint64) error {
	return c.mutate(disputeID, func() error {
		return c.disputes.SettleAppealDeposit(disputeID, roundID)
	})
}

// Queries

func (c *Court) Dispute(disputeID uint64) (disputes.Dispute, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.Dispute(disputeID)
}

func (c *Court) Round(disputeID, roundID uint64) (disputes.Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.Round(disputeID, roundID)
}

func (c *Court) RoundState(disputeID, roundID uint64) (disputes.RoundState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.RoundState(disputeID, roundID)
}

func (c *Court) JurorState(disputeID, roundID uint64, juror common.Address) (disputes.JurorState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.JurorState(disputeID, roundID, juror)
}

// Tally returns the revealed weight per outcome of a round
func (c *Court) Tally(disputeID, roundID uint64) (map[voting.Outcome]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.Voting().Tally(voting.ID{DisputeID: disputeID, RoundID: roundID})
}

func (c *Court) VoterOutcome(disputeID, roundID uint64, juror common.Address) (voting.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.Voting().VoterOutcome(voting.ID{DisputeID: disputeID, RoundID: roundID}, juror)
}

// Disputes returns the number of disputes created so far
func (c *Court) Disputes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disputes.Disputes()
}
