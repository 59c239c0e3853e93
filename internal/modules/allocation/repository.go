// Package allocation stores the target allocation policy.
package allocation

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

// Repository handles policy database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new policy repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "allocation").Logger(),
	}
}

// GetPolicy returns the active policy with its targets in their stored
// order, or nil if none is configured
func (r *Repository) GetPolicy(ctx context.Context) (*domain.Policy, error) {
	var p domain.Policy
	var updatedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, base_currency, updated_at FROM policies ORDER BY id DESC LIMIT 1`,
	).Scan(&p.ID, &p.BaseCurrency, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query policy: %w", err)
	}
	p.UpdatedAt = database.FromMillis(updatedAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT asset_class, weight, band
		FROM policy_targets
		WHERE policy_id = ?
		ORDER BY sort_order ASC, id ASC
	`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy targets: %w", err)
	}
	defer rows.Close()

	p.Targets = []domain.PolicyTarget{}
	for rows.Next() {
		var t domain.PolicyTarget
		var class string
		if err := rows.Scan(&class, &t.Weight, &t.Band); err != nil {
			return nil, fmt.Errorf("failed to scan policy target: %w", err)
		}
		t.AssetClass = domain.AssetClass(class)
		p.Targets = append(p.Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy targets: %w", err)
	}

	return &p, nil
}

// ReplacePolicy deletes the current policy and its targets and inserts p,
// all in one transaction
func (r *Repository) ReplacePolicy(ctx context.Context, p domain.Policy) (*domain.Policy, error) {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	p.BaseCurrency = strings.ToUpper(p.BaseCurrency)

	err := database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM policy_targets`); err != nil {
			return fmt.Errorf("failed to clear policy targets: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM policies`); err != nil {
			return fmt.Errorf("failed to clear policy: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO policies (base_currency, updated_at) VALUES (?, ?)`,
			p.BaseCurrency, database.ToMillis(p.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert policy: %w", err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get policy id: %w", err)
		}

		for i, t := range p.Targets {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO policy_targets (policy_id, asset_class, weight, band, sort_order)
				VALUES (?, ?, ?, ?, ?)
			`, p.ID, string(t.AssetClass), t.Weight, t.Band, i); err != nil {
				return fmt.Errorf("failed to insert target %s: %w", t.AssetClass, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Int64("policy_id", p.ID).Int("targets", len(p.Targets)).Msg("Policy replaced")
	p.UpdatedAt = database.FromMillis(database.ToMillis(p.UpdatedAt))
	return &p, nil
}
