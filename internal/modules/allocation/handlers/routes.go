package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers policy routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/policy", func(r chi.Router) {
		r.Get("/", h.HandleGetPolicy)
		r.Post("/", h.HandleSetPolicy)
	})
}
