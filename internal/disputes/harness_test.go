package disputes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/clock"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/registry"
	"github.com/eigerco/tribunal/internal/subscriptions"
	"github.com/eigerco/tribunal/internal/treasury"
	"github.com/eigerco/tribunal/internal/voting"
)

const (
	subjectAddr common.Address = "subject"
	keeper      common.Address = "keeper"
	maker       common.Address = "maker"
	taker       common.Address = "taker"
	stranger    common.Address = "stranger"

	initialFunds uint64 = 10_000
)

var genesis = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

type subjectMock struct {
	mock.Mock
	addr common.Address
}

func (s *subjectMock) Address() common.Address { return s.addr }

func (s *subjectMock) Rule(disputeID uint64, ruling uint8) {
	s.Called(disputeID, ruling)
}

// scriptedJurors hands out a fixed list of draws before falling back to the
// weighted search, so a test can pin who sits in a round.
type scriptedJurors struct {
	*registry.Registry
	queue []common.Address
}

func (s *scriptedJurors) Draft(p registry.DraftParams) (registry.DraftResult, error) {
	if len(s.queue) == 0 {
		return s.Registry.Draft(p)
	}
	n := min(p.BatchRequested, uint64(len(s.queue)))
	drawn := s.queue[:n]
	s.queue = s.queue[n:]
	for _, addr := range drawn {
		if err := s.Lock(addr, p.LockPerDraw); err != nil {
			return registry.DraftResult{}, err
		}
	}
	return registry.DraftResult{Jurors: drawn, Iterations: 1}, nil
}

type harness struct {
	t        *testing.T
	now      time.Time
	beacon   *clock.HashChainBeacon
	clock    *clock.Clock
	configs  *config.Schedule
	registry *registry.Registry
	jurors   *scriptedJurors
	ledger   *treasury.Memory
	gate     *subscriptions.Memory
	rec      *events.Recorder
	subject  *subjectMock
	m        *Manager
}

func newHarness(t *testing.T, tweak func(*config.CourtConfig)) *harness {
	t.Helper()
	cfg := config.Default()
	if tweak != nil {
		tweak(&cfg)
	}
	h := &harness{
		t:       t,
		now:     genesis,
		beacon:  clock.NewHashChainBeacon(crypto.HashData([]byte("genesis"))),
		rec:     events.NewRecorder(),
		subject: &subjectMock{addr: subjectAddr},
	}
	var err error
	h.clock, err = clock.New(genesis.Add(time.Hour), time.Hour, h.beacon,
		clock.WithNow(func() time.Time { return h.now }),
		clock.WithSink(h.rec),
	)
	require.NoError(t, err)
	h.configs, err = config.NewSchedule(cfg)
	require.NoError(t, err)
	h.registry = registry.New(h.clock, h.configs, h.rec)
	h.jurors = &scriptedJurors{Registry: h.registry}
	h.ledger = treasury.NewMemory()
	h.gate = subscriptions.NewMemory(h.clock)
	h.gate.PayUntil(subjectAddr, 1000)
	h.m = New(h.clock, h.configs, h.jurors, h.ledger, h.gate, h.rec)

	for _, addr := range []common.Address{subjectAddr, maker, taker} {
		require.NoError(t, h.ledger.Fund(addr, initialFunds))
	}
	return h
}

// advance moves the court forward by n terms. The beacon runs two heights per
// term so every term seed can be read during the term.
func (h *harness) advance(n int) {
	h.t.Helper()
	for range n {
		h.now = h.now.Add(time.Hour)
		_, err := h.clock.Heartbeat(1)
		require.NoError(h.t, err)
		h.beacon.Advance(2)
	}
}

func (h *harness) term() common.TermID {
	return h.clock.CurrentTerm()
}

func (h *harness) activate(amount uint64, jurors ...common.Address) {
	h.t.Helper()
	for _, j := range jurors {
		require.NoError(h.t, h.registry.StakeAndActivate(j, amount))
	}
}

// openDispute creates a dispute and closes its evidence period, so its first
// round can be drafted from the next term.
func (h *harness) openDispute() uint64 {
	h.t.Helper()
	id, err := h.m.CreateDispute(h.subject, 2, "ipfs://dispute")
	require.NoError(h.t, err)
	require.NoError(h.t, h.m.CloseEvidencePeriod(governance.Caller{Address: subjectAddr}, id))
	return id
}

func (h *harness) draftAll(id uint64) {
	h.t.Helper()
	for range 50 {
		p, err := h.m.Draft(governance.Caller{Address: keeper}, id, 1000)
		require.NoError(h.t, err)
		if p.Done() {
			return
		}
	}
	h.t.Fatalf("dispute %d: round not drafted", id)
}

func saltOf(juror common.Address) crypto.Salt {
	return crypto.Salt(crypto.HashData([]byte(juror)))
}

func (h *harness) commit(id, round uint64, votes map[common.Address]voting.Outcome) {
	h.t.Helper()
	for juror, outcome := range votes {
		err := h.m.Voting().Commit(voteID(id, round), juror, crypto.CommitmentHash(outcome, saltOf(juror)))
		require.NoError(h.t, err, "commit %s", juror)
	}
}

func (h *harness) reveal(id, round uint64, votes map[common.Address]voting.Outcome) {
	h.t.Helper()
	for juror, outcome := range votes {
		require.NoError(h.t, h.m.Voting().Reveal(voteID(id, round), juror, outcome, saltOf(juror)), "reveal %s", juror)
	}
}

func (h *harness) settleAll(id, round uint64) {
	h.t.Helper()
	for range 50 {
		p, err := h.m.SettlePenalties(governance.Caller{Address: keeper}, id, round, 1000)
		require.NoError(h.t, err)
		if p.Done() {
			return
		}
	}
	h.t.Fatalf("dispute %d: round %d not settled", id, round)
}

func (h *harness) roundState(id, round uint64) RoundState {
	h.t.Helper()
	s, err := h.m.RoundState(id, round)
	require.NoError(h.t, err)
	return s
}

// requireSolvent checks nothing is left in escrow or in the collected pool.
func (h *harness) requireSolvent() {
	h.t.Helper()
	require.Zero(h.t, h.ledger.Escrow(), "escrow")
	require.Zero(h.t, h.registry.CollectedPool(), "collected pool")
	require.Zero(h.t, h.registry.TotalLocked(), "locked")
}
