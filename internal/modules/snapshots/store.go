package snapshots

import (
	"context"
	"database/sql"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Writer appends the rows of one capture run
type Writer interface {
	InsertPositionSnapshot(ctx context.Context, s domain.PositionSnapshot) error
	InsertPortfolioSnapshot(ctx context.Context, s domain.PortfolioSnapshot) (int64, error)
}

// Scope is the set of readers and the writer bound to one transaction
type Scope struct {
	Holdings domain.HoldingsReader
	Prices   domain.PriceReader
	Rates    domain.RateReader
	Writer   Writer
}

// Store runs fn inside a transaction. If fn returns an error nothing fn
// wrote is kept.
type Store interface {
	InTransaction(ctx context.Context, fn func(Scope) error) error
}

// SQLStore is the SQLite-backed Store
type SQLStore struct {
	db   *sql.DB
	log  zerolog.Logger
	wrap func(Writer) Writer
}

// NewSQLStore creates a store over db
func NewSQLStore(db *sql.DB, log zerolog.Logger) *SQLStore {
	return &SQLStore{db: db, log: log}
}

// InTransaction implements Store
func (s *SQLStore) InTransaction(ctx context.Context, fn func(Scope) error) error {
	return database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		md := marketdata.NewRepository(tx, s.log)

		var w Writer = NewRepository(tx, s.log)
		if s.wrap != nil {
			w = s.wrap(w)
		}

		return fn(Scope{
			Holdings: portfolio.NewRepository(tx, s.log),
			Prices:   md,
			Rates:    md,
			Writer:   w,
		})
	})
}
