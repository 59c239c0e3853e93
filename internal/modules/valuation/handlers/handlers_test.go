package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/valuation"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/aristath/folio/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (chi.Router, int64) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	conn := db.Conn()

	accountID := testhelpers.InsertAccount(t, conn, "Broker", "EUR")
	etfID := testhelpers.InsertInstrument(t, conn, "IE00B4L5Y983", "Equity ETF", "EUR")
	bondID := testhelpers.InsertInstrument(t, conn, "XS2345", "Bonds", "EUR")
	testhelpers.InsertPosition(t, conn, accountID, etfID, 4, 70, 280)
	testhelpers.InsertPosition(t, conn, accountID, bondID, 1, 0, 1000)
	testhelpers.InsertPrice(t, conn, etfID, 80, time.Now())

	md := marketdata.NewRepository(conn, log)
	svc := valuation.NewService(portfolio.NewRepository(conn, log), md, md, nil, "EUR", nil, log)
	clock := utils.NewManualClock(time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC))

	r := chi.NewRouter()
	NewHandler(svc, clock, log).RegisterRoutes(r)
	return r, etfID
}

func TestHandleLatest(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/latest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, "EUR", data["reporting_currency"])
	assert.InDelta(t, 1320.0, data["total_value"], 1e-9)
	assert.Len(t, data["by_sleeve"], 2)
	assert.Contains(t, response, "metadata")
}

func TestHandleLatest_InvalidCurrency(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/latest?currency=EURO", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleLatest_NonBaseCurrency(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/latest?currency=USD", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response["error"], "unsupported reporting currency")

	req = httptest.NewRequest(http.MethodGet, "/portfolio/latest?currency=eur", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlePositions(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/positions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Data struct {
			Currency  string                     `json:"currency"`
			Positions []valuation.PositionDetail `json:"positions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "EUR", response.Data.Currency)
	require.Len(t, response.Data.Positions, 2)
	assert.Equal(t, "XS2345", response.Data.Positions[0].Code)
	assert.Equal(t, "entry_total", response.Data.Positions[0].Source)
}

func TestHandleExportPositions(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/positions/export", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "holdings_20240102_1504.csv")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, "IE00B4L5Y983", rows[2][1])
	assert.Equal(t, "320.00", rows[2][8])
}

func TestHandleResolvePrice(t *testing.T) {
	router, etfID := setupRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "known instrument", path: "/prices/" + strconv.FormatInt(etfID, 10), status: http.StatusOK},
		{name: "unknown instrument", path: "/prices/4242", status: http.StatusNotFound},
		{name: "bad id", path: "/prices/abc", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
