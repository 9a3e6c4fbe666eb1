package api

import "github.com/gorilla/mux"

// RegisterRoutes sets up the court HTTP routes
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/terms/current", h.CurrentTerm).Methods("GET")

	// Performs pending term transitions; anyone may send it
	r.HandleFunc("/heartbeat", h.Heartbeat).Methods("POST")

	// Juror balance operations act on the caller's own account
	r.HandleFunc("/jurors/stake", h.jurorCommand(h.Court.Stake)).Methods("POST")
	r.HandleFunc("/jurors/unstake", h.jurorCommand(h.Court.Unstake)).Methods("POST")
	r.HandleFunc("/jurors/activate", h.jurorCommand(h.Court.Activate)).Methods("POST")
	r.HandleFunc("/jurors/deactivate", h.jurorCommand(h.Court.Deactivate)).Methods("POST")
	r.HandleFunc("/jurors/{address}", h.Juror).Methods("GET")
	r.HandleFunc("/supply", h.Supply).Methods("GET")

	r.HandleFunc("/disputes", h.CreateDispute).Methods("POST")
	r.HandleFunc("/disputes/{id}", h.Dispute).Methods("GET")
	r.HandleFunc("/disputes/{id}/evidence", h.SubmitEvidence).Methods("POST")
	r.HandleFunc("/disputes/{id}/evidence/close", h.CloseEvidence).Methods("POST")
	r.HandleFunc("/disputes/{id}/draft", h.Draft).Methods("POST")
	r.HandleFunc("/disputes/{id}/ruling", h.ExecuteRuling).Methods("POST")

	r.HandleFunc("/disputes/{id}/rounds/{round}", h.Round).Methods("GET")
	r.HandleFunc("/disputes/{id}/rounds/{round}/commit", h.Commit).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/reveal", h.Reveal).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/leak", h.Leak).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/appeal", h.appealCommand(h.Court.CreateAppeal)).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/appeal/confirm", h.appealCommand(h.Court.ConfirmAppeal)).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/appeal/deposit", h.SettleAppealDeposit).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/penalties", h.SettlePenalties).Methods("POST")
	r.HandleFunc("/disputes/{id}/rounds/{round}/rewards/{juror}", h.SettleReward).Methods("POST")

	// Event feed for indexers, paged by sequence number
	r.HandleFunc("/events", h.EventFeed).Methods("GET")
}
