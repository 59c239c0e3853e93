// Package snapshots records immutable point-in-time valuations and reads
// them back as history.
package snapshots

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository reads and appends snapshot rows. Rows are never updated or
// deleted.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a snapshot repository over q, which may be a transaction
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// InsertPositionSnapshot appends one position snapshot
func (r *Repository) InsertPositionSnapshot(ctx context.Context, s domain.PositionSnapshot) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO position_snapshots (run_id, account_id, instrument_id, ts, quantity, price, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.AccountID, s.InstrumentID, database.ToMillis(s.Timestamp), s.Quantity, s.Price, s.Value)
	if err != nil {
		return fmt.Errorf("failed to insert position snapshot: %w", err)
	}
	return nil
}

// InsertPortfolioSnapshot appends the aggregate row of a run and returns its id
func (r *Repository) InsertPortfolioSnapshot(ctx context.Context, s domain.PortfolioSnapshot) (int64, error) {
	bySleeve := s.BySleeve
	if bySleeve == nil {
		bySleeve = map[string]float64{}
	}
	blob, err := msgpack.Marshal(bySleeve)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sleeve values: %w", err)
	}

	res, err := r.q.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (run_id, ts, reporting_currency, total_value, by_sleeve)
		VALUES (?, ?, ?, ?, ?)
	`, s.RunID, database.ToMillis(s.Timestamp), s.ReportingCurrency, s.TotalValue, blob)
	if err != nil {
		return 0, fmt.Errorf("failed to insert portfolio snapshot: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get portfolio snapshot id: %w", err)
	}
	return id, nil
}

// ListPortfolioSnapshots returns every portfolio snapshot ordered by time,
// ties broken by insertion order
func (r *Repository) ListPortfolioSnapshots(ctx context.Context) ([]domain.PortfolioSnapshot, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, run_id, ts, reporting_currency, total_value, by_sleeve
		FROM portfolio_snapshots
		ORDER BY ts ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.PortfolioSnapshot
	for rows.Next() {
		s, err := scanPortfolioSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio snapshots: %w", err)
	}

	return snapshots, nil
}

// GetPortfolioSnapshot returns the aggregate row of a run, or nil
func (r *Repository) GetPortfolioSnapshot(ctx context.Context, runID string) (*domain.PortfolioSnapshot, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, run_id, ts, reporting_currency, total_value, by_sleeve
		FROM portfolio_snapshots
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio snapshot %s: %w", runID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanPortfolioSnapshot(rows)
}

// ListPositionSnapshots returns the position rows of one run
func (r *Repository) ListPositionSnapshots(ctx context.Context, runID string) ([]domain.PositionSnapshot, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, run_id, account_id, instrument_id, ts, quantity, price, value
		FROM position_snapshots
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query position snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.PositionSnapshot
	for rows.Next() {
		var s domain.PositionSnapshot
		var ts int64
		if err := rows.Scan(&s.ID, &s.RunID, &s.AccountID, &s.InstrumentID, &ts, &s.Quantity, &s.Price, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan position snapshot: %w", err)
		}
		s.Timestamp = database.FromMillis(ts)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position snapshots: %w", err)
	}

	return snapshots, nil
}

func scanPortfolioSnapshot(rows *sql.Rows) (*domain.PortfolioSnapshot, error) {
	var s domain.PortfolioSnapshot
	var ts int64
	var blob []byte
	if err := rows.Scan(&s.ID, &s.RunID, &ts, &s.ReportingCurrency, &s.TotalValue, &blob); err != nil {
		return nil, fmt.Errorf("failed to scan portfolio snapshot: %w", err)
	}
	s.Timestamp = database.FromMillis(ts)

	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &s.BySleeve); err != nil {
			return nil, fmt.Errorf("failed to decode sleeve values of run %s: %w", s.RunID, err)
		}
	}

	return &s, nil
}
