// Package handlers provides HTTP handlers for snapshot capture and history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	recorder *snapshots.Recorder
	history  *snapshots.HistoryReader
	log      zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(recorder *snapshots.Recorder, history *snapshots.HistoryReader, log zerolog.Logger) *Handler {
	return &Handler{
		recorder: recorder,
		history:  history,
		log:      log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleCapture handles POST /api/admin/snapshot
func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	result, err := h.recorder.Capture(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleHistory handles GET /api/portfolio/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sma := 0
	if raw := r.URL.Query().Get("sma"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > snapshots.MaxSMAPeriod {
			h.writeError(w, http.StatusBadRequest, "sma must be an integer between 0 and 365")
			return
		}
		sma = n
	}

	series, err := h.history.Series(r.Context(), sma)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read history")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, series)
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
