// Package portfolio stores accounts, instruments and positions and ingests
// holdings from CSV exports.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// ErrAccountExists is returned when creating an account whose name is taken
var ErrAccountExists = errors.New("account already exists")

// Repository handles account, instrument and position persistence.
// It works against a plain connection or a transaction.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

const holdingColumns = `
	p.id, p.account_id, p.instrument_id, p.quantity, p.cost_basis, p.entry_total, p.updated_at,
	i.code, i.name, i.asset_class, i.currency, i.instrument_type,
	a.name`

// ListHoldings returns every position joined with its instrument and account
func (r *Repository) ListHoldings(ctx context.Context) ([]domain.Holding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM positions p
		JOIN instruments i ON i.id = p.instrument_id
		JOIN accounts a ON a.id = p.account_id
		ORDER BY a.name, i.code`

	return r.queryHoldings(ctx, query)
}

// ListAccountHoldings returns the positions held in one account
func (r *Repository) ListAccountHoldings(ctx context.Context, accountID int64) ([]domain.Holding, error) {
	query := `SELECT ` + holdingColumns + `
		FROM positions p
		JOIN instruments i ON i.id = p.instrument_id
		JOIN accounts a ON a.id = p.account_id
		WHERE p.account_id = ?
		ORDER BY i.code`

	return r.queryHoldings(ctx, query, accountID)
}

func (r *Repository) queryHoldings(ctx context.Context, query string, args ...interface{}) ([]domain.Holding, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		var updatedAt int64
		if err := rows.Scan(
			&h.Position.ID, &h.Position.AccountID, &h.Position.InstrumentID,
			&h.Position.Quantity, &h.Position.CostBasis, &h.Position.EntryTotal, &updatedAt,
			&h.Instrument.Code, &h.Instrument.Name, &h.Instrument.AssetClass,
			&h.Instrument.Currency, &h.Instrument.InstrumentType,
			&h.AccountName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.Position.UpdatedAt = database.FromMillis(updatedAt)
		h.Instrument.ID = h.Position.InstrumentID
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// GetInstrument returns an instrument by id, or nil if it does not exist
func (r *Repository) GetInstrument(ctx context.Context, id int64) (*domain.Instrument, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, code, name, asset_class, currency, instrument_type FROM instruments WHERE id = ?`, id)
	return scanInstrument(row)
}

// GetInstrumentByCode returns an instrument by code, or nil if it does not exist
func (r *Repository) GetInstrumentByCode(ctx context.Context, code string) (*domain.Instrument, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, code, name, asset_class, currency, instrument_type FROM instruments WHERE code = ?`, code)
	return scanInstrument(row)
}

func scanInstrument(row *sql.Row) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := row.Scan(&inst.ID, &inst.Code, &inst.Name, &inst.AssetClass, &inst.Currency, &inst.InstrumentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument: %w", err)
	}
	return &inst, nil
}

// ListInstruments returns every known instrument
func (r *Repository) ListInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, code, name, asset_class, currency, instrument_type FROM instruments ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.ID, &inst.Code, &inst.Name, &inst.AssetClass, &inst.Currency, &inst.InstrumentType); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

// UpsertInstrument inserts an instrument or refreshes its descriptive fields.
// The code is the identity and never changes.
func (r *Repository) UpsertInstrument(ctx context.Context, inst domain.Instrument) (int64, error) {
	code := strings.TrimSpace(inst.Code)
	if code == "" {
		return 0, fmt.Errorf("instrument code is required")
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO instruments (code, name, asset_class, currency, instrument_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE instruments.name END,
			asset_class = excluded.asset_class,
			currency = excluded.currency,
			instrument_type = excluded.instrument_type`,
		code, inst.Name, inst.AssetClass, strings.ToUpper(inst.Currency), inst.InstrumentType,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert instrument %s: %w", code, err)
	}

	var id int64
	if err := r.q.QueryRowContext(ctx, `SELECT id FROM instruments WHERE code = ?`, code).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read instrument id for %s: %w", code, err)
	}

	return id, nil
}

// GetAccountByName returns an account by name, or nil if it does not exist
func (r *Repository) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	var acc domain.Account
	var createdAt int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, institution, currency, created_at FROM accounts WHERE name = ?`, name,
	).Scan(&acc.ID, &acc.Name, &acc.Institution, &acc.Currency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	acc.CreatedAt = database.FromMillis(createdAt)
	return &acc, nil
}

// ListAccounts returns all accounts ordered by name
func (r *Repository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, institution, currency, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		var createdAt int64
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Institution, &acc.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		acc.CreatedAt = database.FromMillis(createdAt)
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// CreateAccount inserts a new account
func (r *Repository) CreateAccount(ctx context.Context, acc domain.Account) (*domain.Account, error) {
	existing, err := r.GetAccountByName(ctx, acc.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, acc.Name)
	}

	if acc.Institution == "" {
		acc.Institution = "custom"
	}
	if acc.Currency == "" {
		acc.Currency = "EUR"
	}
	acc.Currency = strings.ToUpper(acc.Currency)
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (name, institution, currency, created_at) VALUES (?, ?, ?, ?)`,
		acc.Name, acc.Institution, acc.Currency, database.ToMillis(acc.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert account %s: %w", acc.Name, err)
	}

	acc.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read account id: %w", err)
	}

	r.log.Info().Str("account", acc.Name).Int64("id", acc.ID).Msg("Account created")
	return &acc, nil
}

// UpsertPosition writes the single live row for (account, instrument)
func (r *Repository) UpsertPosition(ctx context.Context, pos domain.Position) error {
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO positions (account_id, instrument_id, quantity, cost_basis, entry_total, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, instrument_id) DO UPDATE SET
			quantity = excluded.quantity,
			cost_basis = excluded.cost_basis,
			entry_total = excluded.entry_total,
			updated_at = excluded.updated_at`,
		pos.AccountID, pos.InstrumentID, pos.Quantity, pos.CostBasis, pos.EntryTotal,
		database.ToMillis(pos.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position (account %d, instrument %d): %w",
			pos.AccountID, pos.InstrumentID, err)
	}

	return nil
}

// DeletePosition removes the position for (account, instrument)
func (r *Repository) DeletePosition(ctx context.Context, accountID, instrumentID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM positions WHERE account_id = ? AND instrument_id = ?`, accountID, instrumentID)
	if err != nil {
		return fmt.Errorf("failed to delete position (account %d, instrument %d): %w", accountID, instrumentID, err)
	}
	return nil
}

// FindOpenQuantity returns the quantity of the first open position whose
// instrument matches code, or name when no code match exists.
func (r *Repository) FindOpenQuantity(ctx context.Context, code, name string) (float64, bool, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"i.code", code},
		{"i.name", name},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}

		var qty float64
		err := r.q.QueryRowContext(ctx, `
			SELECT p.quantity FROM positions p
			JOIN instruments i ON i.id = p.instrument_id
			WHERE `+l.column+` = ?
			ORDER BY p.id LIMIT 1`, l.value,
		).Scan(&qty)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("failed to look up position quantity: %w", err)
		}
		return qty, qty > 0, nil
	}

	return 0, false, nil
}
