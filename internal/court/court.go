// Package court wires the court modules together behind one serialized
// entry point. Every call, reads included, holds the court lock, so hosts
// may call it from any number of goroutines.
package court

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eigerco/tribunal/internal/clock"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/registry"
	"github.com/eigerco/tribunal/internal/subscriptions"
	"github.com/eigerco/tribunal/internal/treasury"
	"github.com/eigerco/tribunal/pkg/log"
)

var (
	ErrSubjectNotRegistered     = errors.New("subject not registered")
	ErrSubjectAlreadyRegistered = errors.New("subject already registered")
)

// SnapshotStore receives a copy of every dispute after each change to it.
type SnapshotStore interface {
	PutDispute(d disputes.Dispute) error
}

type Options struct {
	FirstTermStart time.Time
	TermDuration   time.Duration
	Config         config.CourtConfig
	Beacon         clock.RandomnessBeacon
	// Now defaults to time.Now.
	Now   func() time.Time
	Sinks []events.Sink
	// Snapshots is optional.
	Snapshots SnapshotStore
}

type Court struct {
	mu sync.Mutex

	clock    *clock.Clock
	configs  *config.Schedule
	registry *registry.Registry
	disputes *disputes.Manager
	ledger   *treasury.Memory
	billing  *subscriptions.Memory
	sink     events.Sink

	subjects  map[common.Address]disputes.Subject
	snapshots SnapshotStore
}

func New(opts Options) (*Court, error) {
	sink := events.Sink(events.Multi(opts.Sinks))
	if len(opts.Sinks) == 0 {
		sink = events.Discard
	}
	clockOpts := []clock.Option{clock.WithSink(sink)}
	if opts.Now != nil {
		clockOpts = append(clockOpts, clock.WithNow(opts.Now))
	}
	clk, err := clock.New(opts.FirstTermStart, opts.TermDuration, opts.Beacon, clockOpts...)
	if err != nil {
		return nil, fmt.Errorf("create clock: %w", err)
	}
	configs, err := config.NewSchedule(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("create config schedule: %w", err)
	}

	c := &Court{
		clock:     clk,
		configs:   configs,
		registry:  registry.New(clk, configs, sink),
		ledger:    treasury.NewMemory(),
		billing:   subscriptions.NewMemory(clk),
		sink:      sink,
		subjects:  make(map[common.Address]disputes.Subject),
		snapshots: opts.Snapshots,
	}
	c.disputes = disputes.New(clk, configs, c.registry, c.ledger, c.billing, sink)
	return c, nil
}

// snapshot stores the dispute after a change. Storage failures are logged;
// the change itself already happened.
func (c *Court) snapshot(disputeID uint64) {
	if c.snapshots == nil {
		return
	}
	d, err := c.disputes.Dispute(disputeID)
	if err != nil {
		return
	}
	if err := c.snapshots.PutDispute(d); err != nil {
		log.Court.Error().Err(err).Uint64("dispute", disputeID).Msg("dispute snapshot failed")
	}
}

// Clock

func (c *Court) CurrentTerm() common.TermID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.CurrentTerm()
}

func (c *Court) Term(id common.TermID) (clock.Term, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Term(id)
}

func (c *Court) NeededTransitions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.NeededTransitions()
}

func (c *Court) Heartbeat(maxTransitions uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Heartbeat(maxTransitions)
}

func (c *Court) TermRandomness(id common.TermID) (crypto.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.TermRandomness(id)
}

func (c *Court) DelayStartTime(caller governance.Caller, newFirstTermStart time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.DelayStartTime(caller, newFirstTermStart)
}

// Config

// ConfigAt returns the court config in force at term
func (c *Court) ConfigAt(term common.TermID) config.CourtConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configs.At(term)
}

// ScheduleConfig makes cfg apply from fromTerm on. Disputes keep the config
// of the term they were created in.
func (c *Court) ScheduleConfig(caller governance.Caller, fromTerm common.TermID, cfg config.CourtConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	term, err := c.clock.EnsureCurrentTerm()
	if err != nil {
		return err
	}
	if err := c.configs.Set(caller, term, fromTerm, cfg); err != nil {
		return err
	}
	c.sink.Emit(events.Event{
		Kind:        events.KindConfigScheduled,
		Term:        term,
		Participant: caller.Address,
		Data:        map[string]string{"fromTerm": fmt.Sprint(uint64(fromTerm))},
	})
	return nil
}

// Subjects and fees

// RegisterSubject lets subject raise disputes. Only modules governors may do it.
func (c *Court) RegisterSubject(caller governance.Caller, subject disputes.Subject) error {
	if err := caller.Require(governance.RoleModulesGovernor); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := subject.Address()
	if _, ok := c.subjects[addr]; ok {
		return fmt.Errorf("%w: %s", ErrSubjectAlreadyRegistered, addr)
	}
	c.subjects[addr] = subject
	log.Court.Info().Str("subject", addr.String()).Msg("subject registered")
	return nil
}

// PaySubscription marks subject as paid up to untilTerm. It stands in for
// the subscription module and needs the funds governor role.
func (c *Court) PaySubscription(caller governance.Caller, subject common.Address, untilTerm common.TermID) error {
	if err := caller.Require(governance.RoleFundsGovernor); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.billing.PayUntil(subject, untilTerm)
	return nil
}

// FundFees credits fee tokens from outside the court.
func (c *Court) FundFees(caller governance.Caller, to common.Address, amount uint64) error {
	if err := caller.Require(governance.RoleFundsGovernor); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Fund(to, amount)
}

// WithdrawFees lets a participant take its fee balance out of the court.
func (c *Court) WithdrawFees(caller governance.Caller, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Withdraw(caller.Address, amount)
}

func (c *Court) FeeBalance(addr common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.BalanceOf(addr)
}

func (c *Court) FeeEscrow() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Escrow()
}
