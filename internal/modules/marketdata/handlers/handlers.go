// Package handlers provides HTTP handlers for market data refreshes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/rs/zerolog"
)

// Handler handles market data HTTP requests
type Handler struct {
	refresher *marketdata.Refresher
	log       zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(refresher *marketdata.Refresher, log zerolog.Logger) *Handler {
	return &Handler{
		refresher: refresher,
		log:       log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleRefreshPrices handles POST /api/admin/refresh/prices
func (h *Handler) HandleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Refresh(r.Context())
	if errors.Is(err, marketdata.ErrRefreshInProgress) {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Price refresh failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
