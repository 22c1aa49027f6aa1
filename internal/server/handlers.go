package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/governor/internal/modules/weekly"
)

// handleHealth reports liveness plus the cycle the engine is on. A ledger that
// cannot be read leaves last_cycle out; the process is still healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":           "healthy",
		"version":          "1.0.0",
		"service":          "governor",
		"strategy_version": weekly.StrategyVersion(time.Now()),
	}

	if s.container != nil && s.container.LedgerRepo != nil {
		docs, err := s.container.LedgerRepo.ListDocuments(r.Context(), 1)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to read last weekly document")
		} else if len(docs) > 0 {
			response["last_cycle"] = docs[0]
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
