package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all human lock routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/human-locks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGet(w, r, chi.URLParam(r, "ticker"))
		})
		r.Put("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandlePut(w, r, chi.URLParam(r, "ticker"))
		})
		r.Delete("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleDelete(w, r, chi.URLParam(r, "ticker"))
		})
	})
}
