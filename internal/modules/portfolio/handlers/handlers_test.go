package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/folio/internal/modules/portfolio"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/aristath/folio/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) chi.Router {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)

	repo := portfolio.NewRepository(db.Conn(), log)
	importer := portfolio.NewImporter(db.Conn(), utils.NewManualClock(time.Now()), log)

	r := chi.NewRouter()
	NewHandler(repo, importer, log).RegisterRoutes(r)
	return r
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestHandleUploadHoldings(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name     string
		filename string
		content  []byte
		status   int
	}{
		{
			name:     "valid csv",
			filename: "holdings.csv",
			content:  []byte("account,name,isin_or_symbol,asset_class,currency,quantity,book_cost,initial,instrument_type\nBroker,Apple,AAPL,Stock,USD,1,100,,Stock\n"),
			status:   http.StatusOK,
		},
		{name: "empty file", filename: "holdings.csv", content: []byte("  \n"), status: http.StatusBadRequest},
		{name: "wrong extension", filename: "holdings.xlsx", content: []byte("a,b\n1,2\n"), status: http.StatusBadRequest},
		{name: "not utf8", filename: "holdings.csv", content: []byte{0xff, 0xfe, 0x00, 0x41}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.filename, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/upload/holdings", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			if tt.status == http.StatusOK {
				data := response["data"].(map[string]interface{})
				assert.Equal(t, 1.0, data["upserted"])
			} else {
				assert.Contains(t, response, "error")
			}
		})
	}
}

func TestHandleUploadHoldings_TooLarge(t *testing.T) {
	router := setupRouter(t)

	body, contentType := multipartUpload(t, "big.csv", bytes.Repeat([]byte("a"), MaxUploadBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/upload/holdings", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateAccount(t *testing.T) {
	router := setupRouter(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := post(`{"name":"Broker","institution":"degiro","currency":"EUR"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, http.StatusConflict, post(`{"name":"Broker"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"name":"X","currency":"EURO"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	list := httptest.NewRecorder()
	router.ServeHTTP(list, req)
	assert.Equal(t, http.StatusOK, list.Code)

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, "degiro", response.Data[0]["institution"])
}
