package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers market data admin routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/refresh", func(r chi.Router) {
		r.Post("/prices", h.HandleRefreshPrices)
	})
}
