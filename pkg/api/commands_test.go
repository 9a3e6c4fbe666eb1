package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/court"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/internal/voting"
)

// advance moves the court n terms forward through the heartbeat route
func (ts *testServer) advance(t *testing.T, n int) {
	t.Helper()
	for range n {
		ts.now = ts.now.Add(time.Hour)
		rr := ts.do(t, "POST", "/heartbeat", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		ts.beacon.Advance(2)
	}
}

func saltOf(juror string) crypto.Hash {
	return crypto.HashData([]byte("salt:" + juror))
}

func TestCommands_DisputeLifecycle(t *testing.T) {
	ts := newTestServer(t)
	subject := court.NewRecordingSubject("subject")
	require.NoError(t, ts.court.RegisterSubject(governor, subject))
	require.NoError(t, ts.court.PaySubscription(governor, "subject", 100))
	require.NoError(t, ts.court.FundFees(governor, "subject", 1000))

	for _, juror := range []string{"a", "b", "c"} {
		rr := ts.send(t, juror, "POST", "/jurors/stake", `{"amount": 500}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		rr = ts.send(t, juror, "POST", "/jurors/activate", `{"amount": 0}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		b := decode[map[string]any](t, rr)
		assert.EqualValues(t, 500, b["active"])
	}

	rr := ts.send(t, "stranger", "POST", "/disputes", `{"possibleRulings": 2}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = ts.send(t, "subject", "POST", "/disputes", `{"possibleRulings": 2, "metadata": "ipfs://claim"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, decode[createDisputeResponse](t, rr).ID)

	rr = ts.send(t, "subject", "POST", "/disputes/1/evidence", `{"submitter": "maker", "data": "cGRm"}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	rr = ts.send(t, "subject", "POST", "/disputes/1/evidence/close", "")
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	ts.advance(t, 1)
	rr = ts.send(t, "keeper", "POST", "/disputes/1/draft", `{"batchSize": 10}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[disputes.Progress](t, rr).Done())

	round, err := ts.court.Round(1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, round.Jurors)

	for _, j := range round.Jurors {
		juror := string(j)
		commitment := crypto.CommitmentHash(voting.OutcomeHigh, crypto.Salt(saltOf(juror)))
		rr = ts.send(t, juror, "POST", "/disputes/1/rounds/0/commit", fmt.Sprintf(`{"commitment": %q}`, commitment.String()))
		require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	}
	ts.advance(t, 2)
	for _, j := range round.Jurors {
		juror := string(j)
		body := fmt.Sprintf(`{"outcome": %d, "salt": %q}`, voting.OutcomeHigh, saltOf(juror).String())
		rr = ts.send(t, juror, "POST", "/disputes/1/rounds/0/reveal", body)
		require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	}
	ts.advance(t, 6)

	rr = ts.do(t, "POST", "/disputes/1/ruling", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, voting.OutcomeHigh, decode[rulingResponse](t, rr).Ruling)
	ruling, ok := subject.Ruling(1)
	require.True(t, ok)
	assert.Equal(t, voting.OutcomeHigh, ruling)
	rr = ts.do(t, "POST", "/disputes/1/ruling", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.send(t, "keeper", "POST", "/disputes/1/rounds/0/penalties", `{"batchSize": 10}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[disputes.Progress](t, rr).Done())

	for _, j := range round.Jurors {
		rr = ts.do(t, "POST", "/disputes/1/rounds/0/rewards/"+string(j), "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = ts.do(t, "POST", "/disputes/1/rounds/0/rewards/nobody", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = ts.do(t, "POST", "/disputes/1/rounds/0/appeal/deposit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// draft and settle fees went to the keeper, one of each per draw
	assert.Equal(t, uint64(5*round.SelectedJurors), ts.court.FeeBalance("keeper"))
	assert.Zero(t, ts.court.Supply().Locked)
}

func TestCommands_Rejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		caller string
		target string
		body   string
		status int
	}{
		{"stake without caller", "", "/jurors/stake", `{"amount": 5}`, http.StatusUnauthorized},
		{"stake zero", "a", "/jurors/stake", `{"amount": 0}`, http.StatusUnprocessableEntity},
		{"stake bad payload", "a", "/jurors/stake", `{"amount": "five"}`, http.StatusBadRequest},
		{"unstake unknown juror", "a", "/jurors/unstake", `{"amount": 5}`, http.StatusUnprocessableEntity},
		{"dispute without caller", "", "/disputes", `{"possibleRulings": 2}`, http.StatusUnauthorized},
		{"draft unknown dispute", "keeper", "/disputes/3/draft", `{"batchSize": 1}`, http.StatusNotFound},
		{"draft bad id", "keeper", "/disputes/x/draft", `{"batchSize": 1}`, http.StatusBadRequest},
		{"commit bad hash", "a", "/disputes/1/rounds/0/commit", `{"commitment": "0x12"}`, http.StatusBadRequest},
		{"reveal bad salt", "a", "/disputes/1/rounds/0/reveal", `{"outcome": 3, "salt": "zz"}`, http.StatusBadRequest},
		{"leak without juror", "", "/disputes/1/rounds/0/leak", fmt.Sprintf(`{"outcome": 3, "salt": %q}`, saltOf("a").String()), http.StatusBadRequest},
		{"appeal unknown dispute", "a", "/disputes/9/rounds/0/appeal", `{"ruling": 3}`, http.StatusNotFound},
		{"confirm without caller", "", "/disputes/1/rounds/0/appeal/confirm", `{"ruling": 3}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.send(t, tt.caller, "POST", tt.target, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
		})
	}
}
