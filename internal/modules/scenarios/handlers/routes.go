package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all scenario routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/recent", h.HandleRecent)
		r.Post("/signature", h.HandleSignature)
		r.Post("/safety-lock", h.HandleSafetyLock)
	})
}
