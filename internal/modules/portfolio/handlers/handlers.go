// Package handlers provides HTTP handlers for accounts and holdings uploads.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// MaxUploadBytes is the largest accepted CSV upload
const MaxUploadBytes = 10 << 20

// Handler handles account and upload HTTP requests
type Handler struct {
	repo     *portfolio.Repository
	importer *portfolio.Importer
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	repo *portfolio.Repository,
	importer *portfolio.Importer,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo:     repo,
		importer: importer,
		validate: validator.New(),
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

// CreateAccountRequest is the body of POST /api/accounts
type CreateAccountRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Institution string `json:"institution" validate:"omitempty,max=100"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// HandleListAccounts handles GET /api/accounts
func (h *Handler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.ListAccounts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	h.writeJSON(w, http.StatusOK, accounts)
}

// HandleCreateAccount handles POST /api/accounts
func (h *Handler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.repo.CreateAccount(r.Context(), domain.Account{
		Name:        req.Name,
		Institution: req.Institution,
		Currency:    req.Currency,
	})
	if errors.Is(err, portfolio.ErrAccountExists) {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

// HandleUploadHoldings handles POST /api/upload/holdings
func (h *Handler) HandleUploadHoldings(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, func(ctx context.Context, src io.Reader) (interface{}, error) {
		return h.importer.ImportHoldings(ctx, src)
	})
}

// HandleUploadNAV handles POST /api/upload/nav
func (h *Handler) HandleUploadNAV(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, func(ctx context.Context, src io.Reader) (interface{}, error) {
		return h.importer.ImportNAV(ctx, src)
	})
}

func (h *Handler) handleUpload(
	w http.ResponseWriter,
	r *http.Request,
	importFn func(ctx context.Context, src io.Reader) (interface{}, error),
) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "Upload must be a multipart form under 10MB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		h.writeError(w, http.StatusBadRequest, "Only CSV files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		h.writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}
	if !utf8.Valid(data) {
		h.writeError(w, http.StatusBadRequest, "Uploaded file is not valid UTF-8")
		return
	}

	result, err := importFn(r.Context(), bytes.NewReader(data))
	if errors.Is(err, portfolio.ErrInvalidCSV) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Import failed")
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
