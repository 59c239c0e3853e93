package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "folio.db"),
		Name: "folio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countAccounts(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM accounts").Scan(&n))
	return n
}

func insertAccount(tx *sql.Tx, name string) error {
	_, err := tx.Exec(`INSERT INTO accounts (name, created_at) VALUES (?, ?)`, name, ToMillis(time.Now()))
	return err
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	for _, table := range []string{"accounts", "instruments", "positions", "prices", "fx_rates",
		"policies", "policy_targets", "portfolio_snapshots", "position_snapshots"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestWithTransaction_Commits(t *testing.T) {
	db := newTestDB(t)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return insertAccount(tx, "Broker")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countAccounts(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insertAccount(tx, "Broker"))
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countAccounts(t, db))
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t)

	err := WithTransactionContext(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		require.NoError(t, insertAccount(tx, "Broker"))
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Equal(t, 0, countAccounts(t, db))
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
}

func TestVacuumInto(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		return insertAccount(tx, "Broker")
	}))

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.VacuumInto(context.Background(), dest))

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()
	assert.Equal(t, 1, countAccounts(t, copyDB))
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 14, 23, 30, 0, 123_000_000, time.UTC)
	assert.True(t, ts.Equal(FromMillis(ToMillis(ts))))
}

func TestBuildConnectionString(t *testing.T) {
	conn := buildConnectionString("/tmp/x.db")
	assert.True(t, strings.HasPrefix(conn, "/tmp/x.db?_pragma=journal_mode(WAL)&"))
	assert.Contains(t, conn, "_pragma=synchronous(NORMAL)")
	assert.Contains(t, conn, "_pragma=foreign_keys(1)")
	assert.Contains(t, conn, "_pragma=busy_timeout(5000)")
}
