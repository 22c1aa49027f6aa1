package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all weekly cycle routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/weekly", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/run", h.HandleRun)
		r.Get("/{version}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGet(w, r, chi.URLParam(r, "version"))
		})
	})
}
