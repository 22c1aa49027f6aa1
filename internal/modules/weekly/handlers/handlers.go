// Package handlers provides HTTP handlers for running and reading weekly cycles.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/governor/internal/modules/weekly"
	"github.com/rs/zerolog"
)

// maxRunBody caps the size of a run request
const maxRunBody = 16 << 20

// Handler handles weekly cycle HTTP requests
type Handler struct {
	runner *weekly.CycleRunner
	ledger *weekly.LedgerRepository
	log    zerolog.Logger
}

// NewHandler creates a new weekly handler
func NewHandler(runner *weekly.CycleRunner, ledger *weekly.LedgerRepository, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		ledger: ledger,
		log:    log.With().Str("handler", "weekly").Logger(),
	}
}

// HandleRun handles POST /api/weekly/run
// The body is one InstrumentInput or an array of them. ?version= resumes a given
// cycle instead of the current ISO week.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRunBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	inputs, err := weekly.DecodeInputs(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var result *weekly.RunResult
	if version := r.URL.Query().Get("version"); version != "" {
		result, err = h.runner.RunVersion(r.Context(), version, inputs)
	} else {
		result, err = h.runner.Run(r.Context(), inputs)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Weekly cycle failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result.Document,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"watermark": result.Watermark,
			"resolved":  result.Resolved,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		},
	})
}

// HandleList handles GET /api/weekly
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	docs, err := h.ledger.ListDocuments(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list weekly documents")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"documents": docs,
			"count":     len(docs),
		},
	})
}

// HandleGet handles GET /api/weekly/{version}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request, version string) {
	doc, err := h.ledger.GetDocument(r.Context(), version)
	if err != nil {
		h.log.Error().Err(err).Str("strategy_version", version).Msg("Failed to get weekly document")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		h.writeError(w, http.StatusNotFound, "weekly document not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": doc,
	})
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
