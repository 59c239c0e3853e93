package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/snapshot", h.HandleCapture)
	r.Get("/portfolio/history", h.HandleHistory)
}
