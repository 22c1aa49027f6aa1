// Package handlers provides HTTP handlers for previewing hard constraints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/governor/internal/domain"
	"github.com/aristath/governor/internal/modules/constraints"
	"github.com/rs/zerolog"
)

// Handler handles constraint preview requests
type Handler struct {
	catalog  *constraints.Catalog
	guidance *constraints.Guidance
	log      zerolog.Logger
}

// NewHandler creates a new constraints handler
func NewHandler(catalog *constraints.Catalog, guidance *constraints.Guidance, log zerolog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		guidance: guidance,
		log:      log.With().Str("handler", "constraints").Logger(),
	}
}

// HandlePreview handles POST /api/constraints/preview
// Returns the hard constraints that would trigger for a context, the applicable
// soft scenarios and the priority rules, before any proposal exists.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var ec domain.EvaluationContext
	if err := json.NewDecoder(r.Body).Decode(&ec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid evaluation context: "+err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":           ec.Ticker,
			"triggered":        h.catalog.Triggered(ec),
			"suggestions":      h.guidance.Suggestions(ec),
			"baseline_weights": constraints.BaselineWeights(),
			"expected_weights": h.guidance.Expected(ec),
			"priority_rules":   constraints.PriorityRules,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
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
