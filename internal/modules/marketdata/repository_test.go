package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_LatestPrice(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	conn := db.Conn()
	repo := NewRepository(conn, zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	instID := testhelpers.InsertInstrument(t, conn, "AAA", "Equity", "EUR")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("none observed", func(t *testing.T) {
		obs, err := repo.LatestPrice(ctx, instID)
		require.NoError(t, err)
		assert.Nil(t, obs)
	})

	t.Run("greatest timestamp wins regardless of insert order", func(t *testing.T) {
		testhelpers.InsertPrice(t, conn, instID, 12, base.Add(2*time.Hour))
		testhelpers.InsertPrice(t, conn, instID, 10, base)

		obs, err := repo.LatestPrice(ctx, instID)
		require.NoError(t, err)
		require.NotNil(t, obs)
		assert.Equal(t, 12.0, obs.Price)
		assert.True(t, obs.Timestamp.Equal(base.Add(2*time.Hour)))
	})

	t.Run("equal timestamps resolve to later insert", func(t *testing.T) {
		require.NoError(t, repo.AppendPrice(ctx, domain.PriceObservation{
			InstrumentID: instID, Price: 13, Timestamp: base.Add(2 * time.Hour),
		}))

		obs, err := repo.LatestPrice(ctx, instID)
		require.NoError(t, err)
		assert.Equal(t, 13.0, obs.Price)
	})
}

func TestRepository_LatestRate(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AppendRate(ctx, domain.ExchangeRate{Currency: "usd", Rate: 1.10, Timestamp: base}))
	require.NoError(t, repo.AppendRate(ctx, domain.ExchangeRate{Currency: "USD", Rate: 1.08, Timestamp: base.Add(time.Hour)}))

	rate, err := repo.LatestRate(ctx, "Usd")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, "USD", rate.Currency)
	assert.Equal(t, 1.08, rate.Rate)

	missing, err := repo.LatestRate(ctx, "GBP")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_PriceHistory(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	conn := db.Conn()
	repo := NewRepository(conn, zerolog.New(nil).Level(zerolog.Disabled))

	instID := testhelpers.InsertInstrument(t, conn, "AAA", "Equity", "EUR")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		testhelpers.InsertPrice(t, conn, instID, float64(10+i), base.Add(time.Duration(i)*time.Hour))
	}

	history, err := repo.PriceHistory(context.Background(), instID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []float64{12, 13, 14}, []float64{history[0].Price, history[1].Price, history[2].Price})
}

func TestRepository_PruneObservations(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	conn := db.Conn()
	repo := NewRepository(conn, zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(-3, 0, 0)

	active := testhelpers.InsertInstrument(t, conn, "AAA", "Equity", "EUR")
	stale := testhelpers.InsertInstrument(t, conn, "BBB", "Bonds", "EUR")

	testhelpers.InsertPrice(t, conn, active, 10, old)
	testhelpers.InsertPrice(t, conn, active, 11, old.Add(time.Hour))
	testhelpers.InsertPrice(t, conn, active, 12, now)
	// only old observations: the newest must survive
	testhelpers.InsertPrice(t, conn, stale, 99, old)
	testhelpers.InsertPrice(t, conn, stale, 100, old.Add(time.Hour))

	testhelpers.InsertRate(t, conn, "USD", 1.05, old)
	testhelpers.InsertRate(t, conn, "USD", 1.08, now)
	testhelpers.InsertRate(t, conn, "GBP", 0.85, old)

	prices, rates, err := repo.PruneObservations(ctx, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), prices)
	assert.Equal(t, int64(1), rates)

	assert.Equal(t, 2, testhelpers.CountRows(t, conn, "prices"))
	assert.Equal(t, 2, testhelpers.CountRows(t, conn, "fx_rates"))

	obs, err := repo.LatestPrice(ctx, stale)
	require.NoError(t, err)
	require.NotNil(t, obs)
	assert.Equal(t, 100.0, obs.Price)

	rate, err := repo.LatestRate(ctx, "GBP")
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, 0.85, rate.Rate)
}
