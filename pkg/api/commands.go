package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/pkg/log"
)

// CallerHeader carries the address a command is sent on behalf of. Commands
// never carry governor roles.
const CallerHeader = "X-Tribunal-Caller"

var (
	errMissingCaller  = errors.New("missing " + CallerHeader + " header")
	errInvalidPayload = errors.New("invalid request payload")
)

func callerOf(r *http.Request) (governance.Caller, error) {
	addr := r.Header.Get(CallerHeader)
	if addr == "" {
		return governance.Caller{}, errMissingCaller
	}
	return governance.Anyone(common.Address(addr)), nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidPayload
	}
	return nil
}

// disputeAndRound reads the {id} and, when present, {round} path variables
func disputeAndRound(r *http.Request) (uint64, uint64, error) {
	id, err := uintVar(r, "id")
	if err != nil {
		return 0, 0, err
	}
	if _, ok := mux.Vars(r)["round"]; !ok {
		return id, 0, nil
	}
	round, err := uintVar(r, "round")
	if err != nil {
		return 0, 0, err
	}
	return id, round, nil
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

// jurorCommand runs one of the caller's own balance operations
func (h *Handler) jurorCommand(op func(governance.Caller, uint64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerOf(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		var req amountRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := op(caller, req.Amount); err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusOK, h.Court.JurorBalance(caller.Address))
	}
}

type createDisputeRequest struct {
	PossibleRulings uint8  `json:"possibleRulings"`
	Metadata        string `json:"metadata"`
}

type createDisputeResponse struct {
	ID uint64 `json:"id"`
}

// CreateDispute handles POST /disputes. The caller must be a registered subject.
func (h *Handler) CreateDispute(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var req createDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := h.Court.CreateDispute(caller, req.PossibleRulings, req.Metadata)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	log.API.Info().Uint64("dispute", id).Str("subject", string(caller.Address)).Msg("dispute created")
	writeJSON(w, http.StatusCreated, createDisputeResponse{ID: id})
}

type evidenceRequest struct {
	Submitter common.Address `json:"submitter"`
	Data      []byte         `json:"data"`
}

// SubmitEvidence handles POST /disputes/{id}/evidence
func (h *Handler) SubmitEvidence(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, _, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req evidenceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.SubmitEvidence(caller, id, req.Submitter, req.Data); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseEvidence handles POST /disputes/{id}/evidence/close
func (h *Handler) CloseEvidence(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, _, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.CloseEvidencePeriod(caller, id); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	BatchSize uint64 `json:"batchSize"`
}

// Draft handles POST /disputes/{id}/draft. The caller earns the draft fees.
func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, _, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.Court.Draft(caller, id, req.BatchSize)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type commitRequest struct {
	Commitment string `json:"commitment"`
}

// Commit handles POST /disputes/{id}/rounds/{round}/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	commitment, err := crypto.HashFromHex(req.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.Commit(caller, id, round, commitment); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteRequest struct {
	// Juror is only read by leaks; a reveal is always the caller's own.
	Juror   common.Address `json:"juror,omitempty"`
	Outcome uint8          `json:"outcome"`
	Salt    string         `json:"salt"`
}

func decodeVote(r *http.Request) (voteRequest, crypto.Salt, error) {
	var req voteRequest
	if err := decodeBody(r, &req); err != nil {
		return voteRequest{}, crypto.Salt{}, err
	}
	salt, err := crypto.HashFromHex(req.Salt)
	if err != nil {
		return voteRequest{}, crypto.Salt{}, err
	}
	return req, crypto.Salt(salt), nil
}

// Reveal handles POST /disputes/{id}/rounds/{round}/reveal
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, salt, err := decodeVote(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.Reveal(caller, id, round, req.Outcome, salt); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leak handles POST /disputes/{id}/rounds/{round}/leak. Anyone may send it.
func (h *Handler) Leak(w http.ResponseWriter, r *http.Request) {
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, salt, err := decodeVote(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Juror == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing juror"))
		return
	}
	if err := h.Court.Leak(id, round, req.Juror, req.Outcome, salt); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rulingRequest struct {
	Ruling uint8 `json:"ruling"`
}

// appealCommand serves both sides of an appeal
func (h *Handler) appealCommand(op func(governance.Caller, uint64, uint64, uint8) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerOf(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		id, round, err := disputeAndRound(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var req rulingRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := op(caller, id, round, req.Ruling); err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type rulingResponse struct {
	Ruling uint8 `json:"ruling"`
}

// ExecuteRuling handles POST /disputes/{id}/ruling. Anyone may send it.
func (h *Handler) ExecuteRuling(w http.ResponseWriter, r *http.Request) {
	id, _, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.ExecuteRuling(id); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	ruling, err := h.Court.ComputeRuling(id)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rulingResponse{Ruling: ruling})
}

// SettlePenalties handles POST /disputes/{id}/rounds/{round}/penalties. The
// caller earns the settle fees.
func (h *Handler) SettlePenalties(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.Court.SettlePenalties(caller, id, round, req.BatchSize)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SettleReward handles POST /disputes/{id}/rounds/{round}/rewards/{juror}
func (h *Handler) SettleReward(w http.ResponseWriter, r *http.Request) {
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	juror := common.Address(mux.Vars(r)["juror"])
	if err := h.Court.SettleReward(id, round, juror); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, h.Court.JurorBalance(juror))
}

// SettleAppealDeposit handles POST /disputes/{id}/rounds/{round}/appeal/deposit
func (h *Handler) SettleAppealDeposit(w http.ResponseWriter, r *http.Request) {
	id, round, err := disputeAndRound(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Court.SettleAppealDeposit(id, round); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
