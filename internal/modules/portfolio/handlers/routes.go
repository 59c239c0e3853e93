package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers account and upload routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.HandleListAccounts)
		r.Post("/", h.HandleCreateAccount)
	})

	r.Route("/upload", func(r chi.Router) {
		r.Post("/holdings", h.HandleUploadHoldings)
		r.Post("/nav", h.HandleUploadNAV)
	})
}
