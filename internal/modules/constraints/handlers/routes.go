package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all constraint routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/constraints", func(r chi.Router) {
		r.Post("/preview", h.HandlePreview)
	})
}
