package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rebalance", h.HandleSuggest)
}
