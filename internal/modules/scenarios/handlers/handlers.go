// Package handlers provides HTTP handlers for scenario memory and the Safety Lock.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/scenarios"
	"github.com/rs/zerolog"
)

// Handler handles scenario HTTP requests
type Handler struct {
	store      scenarios.Log
	safetyLock *scenarios.SafetyLockEvaluator
	log        zerolog.Logger
}

// NewHandler creates a new scenarios handler
func NewHandler(store scenarios.Log, safetyLock *scenarios.SafetyLockEvaluator, log zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		safetyLock: safetyLock,
		log:        log.With().Str("handler", "scenarios").Logger(),
	}
}

// HandleSignature handles POST /api/scenarios/signature
func (h *Handler) HandleSignature(w http.ResponseWriter, r *http.Request) {
	ec, ok := h.decodeContext(w, r)
	if !ok {
		return
	}

	sig := scenarios.Extract(ec)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"signature": sig,
			"tags":      sig.Tags(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleSafetyLock handles POST /api/scenarios/safety-lock
// Checks the context against the full scenario log, not a cycle snapshot.
func (h *Handler) HandleSafetyLock(w http.ResponseWriter, r *http.Request) {
	ec, ok := h.decodeContext(w, r)
	if !ok {
		return
	}

	result := h.safetyLock.Check(r.Context(), ec)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRecent handles GET /api/scenarios/recent?limit=N
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scenarios")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"scenarios": records,
			"count":     len(records),
		},
	})
}

func (h *Handler) decodeContext(w http.ResponseWriter, r *http.Request) (domain.EvaluationContext, bool) {
	var ec domain.EvaluationContext
	if err := json.NewDecoder(r.Body).Decode(&ec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid evaluation context: "+err.Error())
		return ec, false
	}
	return ec, true
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
