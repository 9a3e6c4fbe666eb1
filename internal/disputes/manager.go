// Package disputes runs the lifecycle of court disputes: evidence, juror
// drafts, commit-reveal votes, appeals, rulings and the settlement of juror
// penalties, rewards and appeal deposits.
package disputes

import (
	"fmt"
	"strconv"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/registry"
	"github.com/eigerco/tribunal/internal/safemath"
	"github.com/eigerco/tribunal/internal/voting"
	"github.com/eigerco/tribunal/pkg/log"
)

// Subject is the party a dispute is raised for. It receives the final ruling
// through Rule exactly once.
type Subject interface {
	Address() common.Address
	Rule(disputeID uint64, ruling uint8)
}

// BillingGate reports whether a subject may create disputes.
type BillingGate interface {
	IsUpToDate(subject common.Address) bool
}

// FeeLedger holds fee balances. Deposit moves funds into the court escrow,
// Assign moves them out.
type FeeLedger interface {
	Deposit(from common.Address, amount uint64) error
	Assign(to common.Address, amount uint64) error
}

type Clock interface {
	CurrentTerm() common.TermID
	EnsureCurrentTerm() (common.TermID, error)
	EnsureCurrentTermRandomness() (crypto.Hash, error)
	AddDependingDraft(term common.TermID)
	RemoveDependingDraft(term common.TermID)
}

type ConfigSource interface {
	At(term common.TermID) config.CourtConfig
}

// JurorsRegistry is the part of the stake ledger the manager drives.
type JurorsRegistry interface {
	Draft(params registry.DraftParams) (registry.DraftResult, error)
	SlashOrUnlock(jurors []common.Address, penalties []uint64, coherent []bool) (uint64, error)
	CollectTokens(juror common.Address, amount uint64) (bool, error)
	AssignTokens(juror common.Address, amount uint64) error
	BurnTokens(amount uint64) error
	LockWithdrawals(juror common.Address, untilTerm common.TermID) error
	ActiveBalanceAt(juror common.Address, term common.TermID) uint64
	TotalActiveBalanceAt(term common.TermID) uint64
}

type dispute struct {
	Dispute
	subject Subject
}

// Manager is not safe for concurrent use.
type Manager struct {
	clock   Clock
	configs ConfigSource
	jurors  JurorsRegistry
	ledger  FeeLedger
	gate    BillingGate
	sink    events.Sink
	voting  *voting.Voting

	disputes map[uint64]*dispute
	nextID   uint64
}

func New(clock Clock, configs ConfigSource, jurors JurorsRegistry, ledger FeeLedger, gate BillingGate, sink events.Sink) *Manager {
	if sink == nil {
		sink = events.Discard
	}
	m := &Manager{
		clock:    clock,
		configs:  configs,
		jurors:   jurors,
		ledger:   ledger,
		gate:     gate,
		sink:     sink,
		disputes: make(map[uint64]*dispute),
		nextID:   1,
	}
	m.voting = voting.New(m, clock, sink)
	return m
}

// Voting gives access to the round votes. Commits and reveals go straight to
// it; the manager is consulted as the vote owner.
func (m *Manager) Voting() *voting.Voting {
	return m.voting
}

func (m *Manager) emit(kind events.Kind, disputeID, roundID uint64, who common.Address, amount uint64, data map[string]string) {
	m.sink.Emit(events.Event{
		Kind:        kind,
		Term:        m.clock.CurrentTerm(),
		Dispute:     events.Round(disputeID, roundID),
		Participant: who,
		Amount:      amount,
		Data:        data,
	})
}

func (m *Manager) get(disputeID uint64) (*dispute, error) {
	d, ok := m.disputes[disputeID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDisputeDoesNotExist, disputeID)
	}
	return d, nil
}

func (m *Manager) getRound(disputeID, roundID uint64) (*dispute, *Round, error) {
	d, err := m.get(disputeID)
	if err != nil {
		return nil, nil, err
	}
	if roundID >= uint64(len(d.Rounds)) {
		return nil, nil, fmt.Errorf("%w: dispute %d round %d", ErrRoundDoesNotExist, disputeID, roundID)
	}
	return d, d.Rounds[roundID], nil
}

func (m *Manager) configOf(d *dispute) config.CourtConfig {
	return m.configs.At(d.CreateTerm)
}

func voteID(disputeID, roundID uint64) voting.ID {
	return voting.ID{DisputeID: disputeID, RoundID: roundID}
}

// CreateDispute opens a dispute for subject and funds its first round from
// the subject's fee balance. The first round is drafted after the evidence period.
func (m *Manager) CreateDispute(subject Subject, possibleRulings uint8, metadata string) (uint64, error) {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return 0, err
	}
	if possibleRulings < common.MinRulingOptions || possibleRulings > common.MaxRulingOptions {
		return 0, ErrInvalidRulingOptions
	}
	addr := subject.Address()
	if !m.gate.IsUpToDate(addr) {
		return 0, ErrSubscriptionNotPaid
	}

	cfg := m.configs.At(term)
	jurors := cfg.RoundParams.FirstRoundJurorsNumber
	jurorFees, err := safemath.MulE(cfg.Fees.JurorFee, jurors)
	if err != nil {
		return 0, err
	}
	totalFees, err := regularRoundFees(cfg, jurors)
	if err != nil {
		return 0, err
	}
	if err := m.ledger.Deposit(addr, totalFees); err != nil {
		return 0, fmt.Errorf("dispute fees: %w", err)
	}

	id := m.nextID
	m.nextID++
	d := &dispute{
		Dispute: Dispute{
			ID:              id,
			Subject:         addr,
			PossibleRulings: possibleRulings,
			Metadata:        metadata,
			State:           StatePreDraft,
			CreateTerm:      term,
		},
		subject: subject,
	}
	m.disputes[id] = d
	if err := m.createRound(d, term+common.TermID(cfg.Durations.EvidenceTerms), jurors, jurorFees, false); err != nil {
		return 0, err
	}

	log.Court.Debug().Uint64("dispute", id).Str("subject", addr.String()).Msg("dispute created")
	m.emit(events.KindDisputeCreated, id, 0, addr, totalFees, map[string]string{
		"possibleRulings": strconv.Itoa(int(possibleRulings)),
		"draftTerm":       strconv.FormatUint(uint64(d.Rounds[0].DraftTerm), 10),
		"metadata":        metadata,
	})
	return id, nil
}

func (m *Manager) createRound(d *dispute, draftTerm common.TermID, jurors, jurorFees uint64, final bool) error {
	roundID := uint64(len(d.Rounds))
	if err := m.voting.Create(voteID(d.ID, roundID), d.PossibleRulings); err != nil {
		return err
	}
	d.Rounds = append(d.Rounds, &Round{
		DraftTerm:    draftTerm,
		Final:        final,
		JurorsTarget: jurors,
		JurorFees:    jurorFees,
		JurorStates:  make(map[common.Address]*JurorState),
	})
	if !final {
		m.clock.AddDependingDraft(draftTerm)
	}
	return nil
}

// regularRoundFees is what a subject or an appeal pays for a regular round of n jurors.
func regularRoundFees(cfg config.CourtConfig, n uint64) (uint64, error) {
	perJuror, err := safemath.AddE(cfg.Fees.JurorFee, cfg.Fees.DraftFee)
	if err != nil {
		return 0, err
	}
	if perJuror, err = safemath.AddE(perJuror, cfg.Fees.SettleFee); err != nil {
		return 0, err
	}
	return safemath.MulE(perJuror, n)
}

// SubmitEvidence records evidence for a dispute that has not been drafted yet.
// Only the dispute subject may submit it.
func (m *Manager) SubmitEvidence(caller governance.Caller, disputeID uint64, submitter common.Address, evidence []byte) error {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	d, err := m.get(disputeID)
	if err != nil {
		return err
	}
	if caller.Address != d.Subject {
		return ErrSenderNotDisputeSubject
	}
	if d.State != StatePreDraft {
		return ErrEvidencePeriodClosed
	}
	d.Evidence = append(d.Evidence, Evidence{Submitter: submitter, Term: term, Data: append([]byte(nil), evidence...)})
	m.emit(events.KindEvidenceSubmitted, disputeID, 0, submitter, 0, map[string]string{
		"evidence": string(evidence),
	})
	return nil
}

// CloseEvidencePeriod lets the subject end the evidence period early, so the
// first round can be drafted from the next term.
func (m *Manager) CloseEvidencePeriod(caller governance.Caller, disputeID uint64) error {
	term, err := m.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	d, err := m.get(disputeID)
	if err != nil {
		return err
	}
	if caller.Address != d.Subject {
		return ErrSenderNotDisputeSubject
	}
	r := d.Rounds[0]
	if d.State != StatePreDraft || term >= r.DraftTerm {
		return ErrEvidencePeriodClosed
	}
	if next := term.Next(); r.DraftTerm > next {
		m.clock.RemoveDependingDraft(r.DraftTerm)
		m.clock.AddDependingDraft(next)
		r.DraftTerm = next
	}
	m.emit(events.KindEvidencePeriodClosed, disputeID, 0, caller.Address, 0, map[string]string{
		"draftTerm": strconv.FormatUint(uint64(r.DraftTerm), 10),
	})
	return nil
}

// roundState derives the state of a round at term.
func (m *Manager) roundState(d *dispute, roundID uint64, term common.TermID) RoundState {
	if roundID != d.LastRoundID() || d.State == StateRuled {
		return RoundEnded
	}
	r := d.Rounds[roundID]
	if !r.drafted() || term < r.start() {
		return RoundInvalid
	}
	cfg := m.configOf(d).Durations
	commitEnd := r.start() + common.TermID(cfg.CommitTerms)
	if term < commitEnd {
		return RoundCommitting
	}
	revealEnd := commitEnd + common.TermID(cfg.RevealTerms)
	if term < revealEnd {
		return RoundRevealing
	}
	if r.Final {
		return RoundEnded
	}
	appealEnd := revealEnd + common.TermID(cfg.AppealTerms)
	if term < appealEnd {
		return RoundAppealing
	}
	if r.Appeal == nil {
		return RoundEnded
	}
	if term < appealEnd+common.TermID(cfg.AppealConfirmTerms) {
		return RoundConfirmingAppeal
	}
	return RoundEnded
}

// adjudicationEnd is the term a round stops accepting appeal confirmations,
// which is also the draft term of the round a confirmation would create.
func (m *Manager) adjudicationEnd(d *dispute, r *Round) common.TermID {
	cfg := m.configOf(d).Durations
	return r.start() + common.TermID(cfg.CommitTerms+cfg.RevealTerms+cfg.AppealTerms+cfg.AppealConfirmTerms)
}

func (m *Manager) ensureRoundState(d *dispute, roundID uint64, want RoundState) error {
	if got := m.roundState(d, roundID, m.clock.CurrentTerm()); got != want {
		return fmt.Errorf("%w: round %d is %s, want %s", ErrInvalidAdjudicationState, roundID, got, want)
	}
	return nil
}

// Dispute returns a copy of the dispute
func (m *Manager) Dispute(disputeID uint64) (Dispute, error) {
	d, err := m.get(disputeID)
	if err != nil {
		return Dispute{}, err
	}
	return d.clone(), nil
}

// Round returns a copy of a dispute round
func (m *Manager) Round(disputeID, roundID uint64) (Round, error) {
	_, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return Round{}, err
	}
	return r.clone(), nil
}

// RoundState returns the state of a round in the current term
func (m *Manager) RoundState(disputeID, roundID uint64) (RoundState, error) {
	d, _, err := m.getRound(disputeID, roundID)
	if err != nil {
		return RoundInvalid, err
	}
	return m.roundState(d, roundID, m.clock.CurrentTerm()), nil
}

// JurorState returns the seat of a juror in a round; ok is false if the
// juror was not drafted.
func (m *Manager) JurorState(disputeID, roundID uint64, juror common.Address) (JurorState, bool, error) {
	_, r, err := m.getRound(disputeID, roundID)
	if err != nil {
		return JurorState{}, false, err
	}
	s, ok := r.JurorStates[juror]
	if !ok {
		return JurorState{}, false, nil
	}
	return *s, true, nil
}

// Disputes returns the number of disputes created so far.
func (m *Manager) Disputes() uint64 {
	return m.nextID - 1
}
