package court

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/clock"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/store"
	"github.com/eigerco/tribunal/internal/voting"
	"github.com/eigerco/tribunal/pkg/db/pebble"
)

var (
	governor = governance.Caller{
		Address: "governor",
		Roles:   governance.RoleConfigGovernor | governance.RoleFundsGovernor | governance.RoleModulesGovernor,
	}
	keeper = governance.Anyone("keeper")
)

type testCourt struct {
	*Court
	t         *testing.T
	now       time.Time
	beacon    *clock.HashChainBeacon
	rec       *events.Recorder
	snapshots *store.Disputes
	subject   *RecordingSubject
}

func newTestCourt(t *testing.T) *testCourt {
	t.Helper()
	kv, err := pebble.NewKVStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tc := &testCourt{
		t:         t,
		now:       start,
		beacon:    clock.NewHashChainBeacon(crypto.HashData([]byte("court"))),
		rec:       events.NewRecorder(),
		snapshots: store.NewDisputes(kv),
		subject:   NewRecordingSubject("subject"),
	}
	tc.Court, err = New(Options{
		FirstTermStart: start.Add(time.Hour),
		TermDuration:   time.Hour,
		Config:         config.Default(),
		Beacon:         tc.beacon,
		Now:            func() time.Time { return tc.now },
		Sinks:          []events.Sink{tc.rec},
		Snapshots:      tc.snapshots,
	})
	require.NoError(t, err)

	require.NoError(t, tc.RegisterSubject(governor, tc.subject))
	require.NoError(t, tc.PaySubscription(governor, "subject", 100))
	require.NoError(t, tc.FundFees(governor, "subject", 1000))
	return tc
}

func (tc *testCourt) advance(n int) {
	tc.t.Helper()
	for range n {
		tc.now = tc.now.Add(time.Hour)
		_, err := tc.Heartbeat(1)
		require.NoError(tc.t, err)
		tc.beacon.Advance(2)
	}
}

func TestCourt_DisputeLifecycle(t *testing.T) {
	tc := newTestCourt(t)
	jurors := []common.Address{"a", "b", "c", "d", "e"}
	for _, j := range jurors {
		require.NoError(t, tc.StakeAndActivate(governance.Anyone(j), 500))
	}
	tc.advance(1)

	subject := governance.Anyone("subject")
	id, err := tc.CreateDispute(subject, 2, "ipfs://claim")
	require.NoError(t, err)
	require.NoError(t, tc.SubmitEvidence(subject, id, "subject", []byte("invoice")))
	require.NoError(t, tc.CloseEvidencePeriod(subject, id))
	tc.advance(1)

	for {
		p, err := tc.Draft(keeper, id, 2)
		require.NoError(t, err)
		if p.Done() {
			break
		}
	}
	r, err := tc.Round(id, 0)
	require.NoError(t, err)
	state, err := tc.RoundState(id, 0)
	require.NoError(t, err)
	assert.Equal(t, disputes.RoundCommitting, state)

	salt := func(j common.Address) crypto.Salt { return crypto.Salt(crypto.HashData([]byte("salt-" + j))) }
	for _, j := range r.Jurors {
		require.NoError(t, tc.Commit(governance.Anyone(j), id, 0, crypto.CommitmentHash(voting.OutcomeLow, salt(j))))
	}
	tc.advance(2)
	for _, j := range r.Jurors {
		require.NoError(t, tc.Reveal(governance.Anyone(j), id, 0, voting.OutcomeLow, salt(j)))
	}
	tally, err := tc.Tally(id, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tally[voting.OutcomeLow])
	tc.advance(4)

	require.NoError(t, tc.ExecuteRuling(id))
	ruling, ok := tc.subject.Ruling(id)
	require.True(t, ok)
	assert.Equal(t, voting.OutcomeLow, ruling)

	for {
		p, err := tc.SettlePenalties(keeper, id, 0, 1)
		require.NoError(t, err)
		if p.Done() {
			break
		}
	}
	for _, j := range r.Jurors {
		require.NoError(t, tc.SettleReward(id, 0, j))
	}

	assert.Zero(t, tc.FeeEscrow())
	assert.Equal(t, uint64(3*3+3*2), tc.FeeBalance("keeper"))
	assert.Equal(t, Supply{Active: 2500}, tc.Supply())
	require.NoError(t, tc.WithdrawFees(keeper, 15))
	assert.Zero(t, tc.FeeBalance("keeper"))

	snap, err := tc.snapshots.GetDispute(id)
	require.NoError(t, err)
	assert.Equal(t, disputes.StateRuled, snap.State)
	assert.True(t, snap.RulingExecuted)
	require.Len(t, snap.Evidence, 1)
	assert.True(t, snap.Rounds[0].SettledPenalties)

	assert.NotEmpty(t, tc.rec.OfKind(events.KindRulingExecuted))
	assert.NotEmpty(t, tc.rec.OfKind(events.KindHeartbeat))
}

func TestCourt_Permissions(t *testing.T) {
	tc := newTestCourt(t)
	stranger := governance.Anyone("stranger")

	assert.ErrorIs(t, tc.RegisterSubject(stranger, NewRecordingSubject("x")), governance.ErrSenderNotAllowed)
	assert.ErrorIs(t, tc.RegisterSubject(governor, NewRecordingSubject("subject")), ErrSubjectAlreadyRegistered)
	assert.ErrorIs(t, tc.PaySubscription(stranger, "x", 5), governance.ErrSenderNotAllowed)
	assert.ErrorIs(t, tc.FundFees(stranger, "x", 5), governance.ErrSenderNotAllowed)
	assert.ErrorIs(t, tc.ScheduleConfig(stranger, 5, config.Default()), governance.ErrSenderNotAllowed)

	_, err := tc.CreateDispute(stranger, 2, "")
	assert.ErrorIs(t, err, ErrSubjectNotRegistered)
}

func TestCourt_ScheduleConfig(t *testing.T) {
	tc := newTestCourt(t)
	cfg := config.Default()
	cfg.Fees.JurorFee = 20
	require.NoError(t, tc.ScheduleConfig(governor, 2, cfg))
	assert.Equal(t, uint64(10), tc.ConfigAt(1).Fees.JurorFee)
	assert.Equal(t, uint64(20), tc.ConfigAt(2).Fees.JurorFee)
	assert.Len(t, tc.rec.OfKind(events.KindConfigScheduled), 1)

	// disputes keep the config of their creation term
	id, err := tc.CreateDispute(governance.Anyone("subject"), 2, "")
	require.NoError(t, err)
	tc.advance(2)
	r, err := tc.Round(id, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), r.JurorFees)
}

func TestCourt_DelayStartTime(t *testing.T) {
	tc := newTestCourt(t)
	later := tc.now.Add(5 * time.Hour)
	require.NoError(t, tc.DelayStartTime(governor, later))

	tc.now = tc.now.Add(2 * time.Hour)
	assert.Zero(t, tc.NeededTransitions())
	_, err := tc.Heartbeat(1)
	assert.ErrorIs(t, err, clock.ErrInvalidTransitionTerms)

	tc.now = later
	assert.Equal(t, uint64(1), tc.NeededTransitions())
}

func TestCourt_ConcurrentCalls(t *testing.T) {
	tc := newTestCourt(t)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := common.Address("juror-" + string(rune('A'+i)))
			assert.NoError(t, tc.StakeAndActivate(governance.Anyone(j), 100))
			_ = tc.JurorBalance(j)
			_ = tc.Supply()
			_ = tc.CurrentTerm()
		}()
	}
	wg.Wait()

	assert.Len(t, tc.Jurors(), 32)
	assert.Equal(t, uint64(3200), tc.Supply().Active)
	tc.advance(1)
	assert.Equal(t, uint64(3200), tc.TotalActiveBalanceAt(tc.CurrentTerm()))
}
