package snapshots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/metrics"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/aristath/folio/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected write failure")

// failingWriter fails once limit position snapshots have been written
type failingWriter struct {
	Writer
	limit   int
	written int
}

func (f *failingWriter) InsertPositionSnapshot(ctx context.Context, s domain.PositionSnapshot) error {
	if f.written >= f.limit {
		return errInjected
	}
	f.written++
	return f.Writer.InsertPositionSnapshot(ctx, s)
}

type fixture struct {
	db       *database.DB
	store    *SQLStore
	repo     *Repository
	clock    *utils.ManualClock
	recorder *Recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	conn := db.Conn()

	accountID := testhelpers.InsertAccount(t, conn, "Broker", "EUR")
	aapl := testhelpers.InsertInstrument(t, conn, "AAPL", "Stock", "USD")
	cash := testhelpers.InsertInstrument(t, conn, "CASH:EUR", "Cash", "EUR")
	bond := testhelpers.InsertInstrument(t, conn, "XS99", "Bonds", "EUR")
	testhelpers.InsertPosition(t, conn, accountID, aapl, 10, 40, 400)
	testhelpers.InsertPosition(t, conn, accountID, cash, 5, 1, 5)
	testhelpers.InsertPosition(t, conn, accountID, bond, 2, 0, 1000)

	now := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)
	testhelpers.InsertPrice(t, conn, aapl, 50, now)
	testhelpers.InsertRate(t, conn, "USD", 1.08, now)

	clock := utils.NewManualClock(now)
	store := NewSQLStore(conn, log)

	return fixture{
		db:       db,
		store:    store,
		repo:     NewRepository(conn, log),
		clock:    clock,
		recorder: NewRecorder(store, "EUR", clock, metrics.New(prometheus.NewRegistry()), log),
	}
}

func TestCapture(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	result, err := f.recorder.Capture(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Positions)
	assert.Equal(t, f.clock.Now(), result.Timestamp)
	assert.InDelta(t, 1467.96, result.TotalValue, 0.005)
	assert.InDelta(t, 462.96, result.BySleeve["Equity"], 0.005)
	assert.InDelta(t, 1000.0, result.BySleeve["Bonds"], 1e-9)

	stored, err := f.repo.GetPortfolioSnapshot(ctx, result.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "EUR", stored.ReportingCurrency)
	assert.InDelta(t, result.TotalValue, stored.TotalValue, 1e-9)
	assert.Equal(t, result.BySleeve, stored.BySleeve)

	positions, err := f.repo.ListPositionSnapshots(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	byValue := make(map[float64]domain.PositionSnapshot)
	for _, p := range positions {
		byValue[p.Value] = p
	}
	bondRow, ok := byValue[1000]
	require.True(t, ok)
	assert.Equal(t, 0.0, bondRow.Price, "fallback positions record a zero price")
}

func TestCapture_AtomicOnFailure(t *testing.T) {
	for _, limit := range []int{0, 1, 2} {
		f := setup(t)
		f.store.wrap = func(w Writer) Writer {
			return &failingWriter{Writer: w, limit: limit}
		}

		_, err := f.recorder.Capture(context.Background())
		require.ErrorIs(t, err, errInjected)

		assert.Equal(t, 0, testhelpers.CountRows(t, f.db.Conn(), "position_snapshots"), "limit %d", limit)
		assert.Equal(t, 0, testhelpers.CountRows(t, f.db.Conn(), "portfolio_snapshots"), "limit %d", limit)

		points, err := NewHistoryReader(f.repo).History(context.Background())
		require.NoError(t, err)
		assert.Empty(t, points)
	}
}

func TestCapture_RunsAreIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.recorder.Capture(ctx)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	second, err := f.recorder.Capture(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 6, testhelpers.CountRows(t, f.db.Conn(), "position_snapshots"))
	assert.Equal(t, 2, testhelpers.CountRows(t, f.db.Conn(), "portfolio_snapshots"))
}

func TestCaptureJob(t *testing.T) {
	f := setup(t)
	job := NewCaptureJob(f.recorder, zerolog.New(nil).Level(zerolog.Disabled))

	assert.Equal(t, "eod_snapshot", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, testhelpers.CountRows(t, f.db.Conn(), "portfolio_snapshots"))
}
