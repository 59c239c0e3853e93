package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers valuation routes.
// /portfolio is shared with snapshot history, so routes are registered flat.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio/latest", h.HandleLatest)
	r.Get("/portfolio/positions", h.HandlePositions)
	r.Get("/portfolio/positions/export", h.HandleExportPositions)
	r.Get("/prices/{instrumentID}", h.HandleResolvePrice)
}
