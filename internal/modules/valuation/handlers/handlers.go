// Package handlers provides HTTP handlers for live valuation views.
package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/folio/internal/modules/valuation"
	"github.com/aristath/folio/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// exportColumns is the header row of the positions CSV export
var exportColumns = []string{
	"name", "code", "asset_class", "instrument_type", "account", "currency",
	"quantity", "price", "value", "cost_value", "unrealized_pnl", "pnl_percent",
	"weight_percent", "freshness",
}

// Handler handles valuation HTTP requests
type Handler struct {
	service *valuation.Service
	clock   utils.Clock
	log     zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(service *valuation.Service, clock utils.Clock, log zerolog.Logger) *Handler {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Handler{
		service: service,
		clock:   clock,
		log:     log.With().Str("handler", "valuation").Logger(),
	}
}

// HandleLatest handles GET /api/portfolio/latest. Only the base currency is
// accepted in ?currency=.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency != "" && len(currency) != 3 {
		h.writeError(w, http.StatusBadRequest, "currency must be a 3-letter code")
		return
	}

	overview, err := h.service.GetOverview(r.Context(), currency)
	if errors.Is(err, valuation.ErrUnsupportedCurrency) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute overview")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, overview)
}

// HandlePositions handles GET /api/portfolio/positions
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list positions")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"currency":  h.service.BaseCurrency(),
		"positions": positions,
	})
}

// HandleExportPositions handles GET /api/portfolio/positions/export
func (h *Handler) HandleExportPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.Positions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export positions")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+valuation.ExportFilename(h.clock.Now()))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportColumns)
	for _, p := range positions {
		_ = cw.Write([]string{
			p.Name,
			p.Code,
			string(p.AssetClass),
			p.InstrumentType,
			p.Account,
			p.Currency,
			formatFloat(p.Quantity),
			formatFloat(p.Price),
			formatMoney(p.Value),
			formatMoney(p.CostValue),
			formatMoney(p.UnrealizedPnL),
			formatMoney(p.PnLPercent),
			formatMoney(p.Weight * 100),
			string(p.Freshness),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// HandleResolvePrice handles GET /api/prices/{instrumentID}
func (h *Handler) HandleResolvePrice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "instrumentID"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid instrument id")
		return
	}

	result, err := h.service.ResolvePrice(r.Context(), id)
	if errors.Is(err, valuation.ErrInstrumentNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("instrument_id", id).Msg("Failed to resolve price")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
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
