// Package handlers provides HTTP handlers for Human Lock management.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/events"
	"github.com/aristath/governor/internal/modules/humanlock"
	"github.com/rs/zerolog"
)

// Handler handles Human Lock HTTP requests
type Handler struct {
	repo *humanlock.Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewHandler creates a new human lock handler
func NewHandler(repo *humanlock.Repository, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("handler", "human_locks").Logger(),
	}
}

// lockRequest is the PUT body
type lockRequest struct {
	Locked   *bool         `json:"locked"`
	Action   domain.Action `json:"action"`
	Reason   string        `json:"reason"`
	SignalID string        `json:"signal_id"`
}

// HandleList handles GET /api/human-locks
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	locks, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list human locks")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"locks": locks,
			"count": len(locks),
		},
	})
}

// HandleGet handles GET /api/human-locks/{ticker}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request, ticker string) {
	lock, err := h.repo.Get(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get human lock")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lock == nil {
		h.writeError(w, http.StatusNotFound, "no human lock for "+ticker)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": lock})
}

// HandlePut handles PUT /api/human-locks/{ticker}
// The lock is active unless the body sets "locked": false.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request, ticker string) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	directive := domain.HumanLockDirective{
		Ticker:    ticker,
		Locked:    req.Locked == nil || *req.Locked,
		Action:    req.Action,
		Reason:    req.Reason,
		SignalID:  req.SignalID,
		UpdatedAt: time.Now(),
	}
	if err := humanlock.Validate(directive); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.repo.Upsert(r.Context(), directive)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to store human lock")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.bus.Emit("humanlock", &events.HumanLockChangedData{
		Ticker: stored.Ticker,
		Locked: stored.Locked,
		Action: string(stored.Action),
	})

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": stored})
}

// HandleDelete handles DELETE /api/human-locks/{ticker}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, ticker string) {
	deleted, err := h.repo.Delete(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete human lock")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "no human lock for "+ticker)
		return
	}

	h.bus.Emit("humanlock", &events.HumanLockChangedData{Ticker: strings.ToUpper(ticker), Locked: false})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
