package testing

import (
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
)

// Fixture inserts go through raw SQL so module tests can use them without
// import cycles.

// InsertAccount inserts an account and returns its id
func InsertAccount(t *testing.T, conn *sql.DB, name, currency string) int64 {
	t.Helper()

	res, err := conn.Exec(
		`INSERT INTO accounts (name, institution, currency, created_at) VALUES (?, 'custom', ?, ?)`,
		name, currency, database.ToMillis(time.Now()),
	)
	if err != nil {
		t.Fatalf("Failed to insert account %s: %v", name, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertInstrument inserts an instrument and returns its id
func InsertInstrument(t *testing.T, conn *sql.DB, code, assetClass, currency string) int64 {
	t.Helper()

	res, err := conn.Exec(
		`INSERT INTO instruments (code, name, asset_class, currency) VALUES (?, ?, ?, ?)`,
		code, code, assetClass, currency,
	)
	if err != nil {
		t.Fatalf("Failed to insert instrument %s: %v", code, err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertPosition inserts a position
func InsertPosition(t *testing.T, conn *sql.DB, accountID, instrumentID int64, qty, costBasis, entryTotal float64) {
	t.Helper()

	_, err := conn.Exec(
		`INSERT INTO positions (account_id, instrument_id, quantity, cost_basis, entry_total, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		accountID, instrumentID, qty, costBasis, entryTotal, database.ToMillis(time.Now()),
	)
	if err != nil {
		t.Fatalf("Failed to insert position: %v", err)
	}
}

// InsertPrice appends a price observation
func InsertPrice(t *testing.T, conn *sql.DB, instrumentID int64, price float64, ts time.Time) {
	t.Helper()

	if _, err := conn.Exec(
		`INSERT INTO prices (instrument_id, price, ts) VALUES (?, ?, ?)`,
		instrumentID, price, database.ToMillis(ts),
	); err != nil {
		t.Fatalf("Failed to insert price: %v", err)
	}
}

// InsertRate appends an exchange rate observation
func InsertRate(t *testing.T, conn *sql.DB, currency string, rate float64, ts time.Time) {
	t.Helper()

	if _, err := conn.Exec(
		`INSERT INTO fx_rates (currency, rate, ts) VALUES (?, ?, ?)`,
		currency, rate, database.ToMillis(ts),
	); err != nil {
		t.Fatalf("Failed to insert rate: %v", err)
	}
}
