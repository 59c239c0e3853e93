// Package marketdata records price and exchange rate observations and
// refreshes them from upstream sources.
package marketdata

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

// Repository appends and reads price and exchange rate observations.
// Observations are never updated; old ones are only removed by
// PruneObservations.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a new market data repository
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "marketdata").Logger(),
	}
}

// AppendPrice records one price observation
func (r *Repository) AppendPrice(ctx context.Context, obs domain.PriceObservation) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO prices (instrument_id, price, ts) VALUES (?, ?, ?)`,
		obs.InstrumentID, obs.Price, database.ToMillis(obs.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append price for instrument %d: %w", obs.InstrumentID, err)
	}
	return nil
}

// LatestPrice returns the observation with the greatest timestamp for an
// instrument. Equal timestamps resolve to the later insert.
func (r *Repository) LatestPrice(ctx context.Context, instrumentID int64) (*domain.PriceObservation, error) {
	var obs domain.PriceObservation
	var ts int64
	err := r.q.QueryRowContext(ctx, `
		SELECT id, instrument_id, price, ts FROM prices
		WHERE instrument_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT 1`, instrumentID,
	).Scan(&obs.ID, &obs.InstrumentID, &obs.Price, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price for instrument %d: %w", instrumentID, err)
	}
	obs.Timestamp = database.FromMillis(ts)
	return &obs, nil
}

// AppendRate records one exchange rate observation
func (r *Repository) AppendRate(ctx context.Context, rate domain.ExchangeRate) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO fx_rates (currency, rate, ts) VALUES (?, ?, ?)`,
		strings.ToUpper(rate.Currency), rate.Rate, database.ToMillis(rate.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append rate for %s: %w", rate.Currency, err)
	}
	return nil
}

// LatestRate returns the most recent rate for a currency
func (r *Repository) LatestRate(ctx context.Context, currency string) (*domain.ExchangeRate, error) {
	var rate domain.ExchangeRate
	var ts int64
	err := r.q.QueryRowContext(ctx, `
		SELECT id, currency, rate, ts FROM fx_rates
		WHERE currency = ?
		ORDER BY ts DESC, id DESC
		LIMIT 1`, strings.ToUpper(currency),
	).Scan(&rate.ID, &rate.Currency, &rate.Rate, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest rate for %s: %w", currency, err)
	}
	rate.Timestamp = database.FromMillis(ts)
	return &rate, nil
}

// PriceHistory returns the observations for an instrument, oldest first
func (r *Repository) PriceHistory(ctx context.Context, instrumentID int64, limit int) ([]domain.PriceObservation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, instrument_id, price, ts FROM (
			SELECT id, instrument_id, price, ts FROM prices
			WHERE instrument_id = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		) ORDER BY ts ASC, id ASC`, instrumentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceObservation
	for rows.Next() {
		var obs domain.PriceObservation
		var ts int64
		if err := rows.Scan(&obs.ID, &obs.InstrumentID, &obs.Price, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		obs.Timestamp = database.FromMillis(ts)
		out = append(out, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return out, nil
}

// PruneObservations deletes price and rate observations older than before.
// The newest observation per instrument and per currency is always kept,
// so resolution never loses its last known value.
func (r *Repository) PruneObservations(ctx context.Context, before time.Time) (int64, int64, error) {
	cutoff := database.ToMillis(before)

	res, err := r.q.ExecContext(ctx, `
		DELETE FROM prices
		WHERE ts < ?
		AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY instrument_id ORDER BY ts DESC, id DESC) AS rn
				FROM prices
			) WHERE rn = 1
		)`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prune prices: %w", err)
	}
	prices, _ := res.RowsAffected()

	res, err = r.q.ExecContext(ctx, `
		DELETE FROM fx_rates
		WHERE ts < ?
		AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY currency ORDER BY ts DESC, id DESC) AS rn
				FROM fx_rates
			) WHERE rn = 1
		)`, cutoff)
	if err != nil {
		return prices, 0, fmt.Errorf("failed to prune rates: %w", err)
	}
	rates, _ := res.RowsAffected()

	return prices, rates, nil
}
