// Package api serves the court over HTTP: queries and the event feed for
// indexers, and the commands subjects, jurors and keepers send.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/eigerco/tribunal/internal/clock"
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/court"
	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/pkg/log"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

// EventSource serves the event feed, see store.Journal.
type EventSource interface {
	Since(from uint64, limit int) ([]events.Event, error)
}

type Handler struct {
	Court  *court.Court
	Events EventSource
}

func NewHandler(c *court.Court, feed EventSource) *Handler {
	return &Handler{Court: c, Events: feed}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.API.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.API.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusOf maps court errors to HTTP statuses. Anything else the court
// returns is a rejection of the request under the court rules.
func statusOf(err error) int {
	switch {
	case errors.Is(err, disputes.ErrDisputeDoesNotExist),
		errors.Is(err, disputes.ErrRoundDoesNotExist),
		errors.Is(err, clock.ErrTermDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, governance.ErrSenderNotAllowed),
		errors.Is(err, disputes.ErrSenderNotDisputeSubject),
		errors.Is(err, court.ErrSubjectNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, clock.ErrInvalidTransitionTerms),
		errors.Is(err, clock.ErrTooManyTransitions):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func uintVar(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

type termResponse struct {
	clock.Term
	NeededTransitions uint64 `json:"neededTransitions"`
}

// CurrentTerm handles GET /terms/current
func (h *Handler) CurrentTerm(w http.ResponseWriter, r *http.Request) {
	term, err := h.Court.Term(h.Court.CurrentTerm())
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, termResponse{Term: term, NeededTransitions: h.Court.NeededTransitions()})
}

type heartbeatRequest struct {
	MaxTransitions uint64 `json:"maxTransitions"`
}

type heartbeatResponse struct {
	Transitioned uint64        `json:"transitioned"`
	Term         common.TermID `json:"term"`
}

// Heartbeat handles POST /heartbeat. An empty body performs one transition.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	req := heartbeatRequest{MaxTransitions: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request payload"))
			return
		}
	}
	n, err := h.Court.Heartbeat(req.MaxTransitions)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	log.API.Debug().Uint64("transitioned", n).Msg("heartbeat")
	writeJSON(w, http.StatusOK, heartbeatResponse{Transitioned: n, Term: h.Court.CurrentTerm()})
}

// Dispute handles GET /disputes/{id}
func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	id, err := uintVar(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := h.Court.Dispute(id)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type roundResponse struct {
	disputes.Round
	State disputes.RoundState `json:"state"`
}

// Round handles GET /disputes/{id}/rounds/{round}
func (h *Handler) Round(w http.ResponseWriter, r *http.Request) {
	id, err := uintVar(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	roundID, err := uintVar(r, "round")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	round, err := h.Court.Round(id, roundID)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	state, err := h.Court.RoundState(id, roundID)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, roundResponse{Round: round, State: state})
}

// Juror handles GET /jurors/{address}
func (h *Handler) Juror(w http.ResponseWriter, r *http.Request) {
	addr := common.Address(mux.Vars(r)["address"])
	writeJSON(w, http.StatusOK, h.Court.JurorBalance(addr))
}

// Supply handles GET /supply
func (h *Handler) Supply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Court.Supply())
}

// EventFeed handles GET /events?from=N&limit=M
func (h *Handler) EventFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		from  uint64
		limit = defaultEventsLimit
		err   error
	)
	if s := q.Get("from"); s != "" {
		if from, err = strconv.ParseUint(s, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid from"))
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
	}
	limit = min(limit, maxEventsLimit)

	evs, err := h.Events.Since(from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}
