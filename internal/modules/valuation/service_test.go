package valuation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/portfolio"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scenario struct {
	service  *Service
	aaplID   int64
	cashID   int64
	unpriced int64
}

// setupScenario builds the reference portfolio: 10 units of a USD stock at
// 50 USD with USD at 1.08 per EUR, plus 5 units of EUR cash.
func setupScenario(t *testing.T, policy *domain.Policy) scenario {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	log := zerolog.New(nil).Level(zerolog.Disabled)
	conn := db.Conn()

	accountID := testhelpers.InsertAccount(t, conn, "Broker", "EUR")
	aaplID := testhelpers.InsertInstrument(t, conn, "AAPL", "Stock", "USD")
	cashID := testhelpers.InsertInstrument(t, conn, "CASH:EUR", "Cash", "EUR")
	testhelpers.InsertPosition(t, conn, accountID, aaplID, 10, 40, 400)
	testhelpers.InsertPosition(t, conn, accountID, cashID, 5, 1, 5)

	now := time.Now()
	testhelpers.InsertPrice(t, conn, aaplID, 48, now.Add(-time.Hour))
	testhelpers.InsertPrice(t, conn, aaplID, 50, now)
	testhelpers.InsertRate(t, conn, "EUR", 1.0, now)
	testhelpers.InsertRate(t, conn, "USD", 1.08, now)

	md := marketdata.NewRepository(conn, log)
	svc := NewService(
		portfolio.NewRepository(conn, log),
		md, md,
		&testhelpers.StaticPolicy{Policy: policy},
		"EUR", nil, log,
	)

	return scenario{service: svc, aaplID: aaplID, cashID: cashID}
}

func TestGetOverview_EndToEnd(t *testing.T) {
	s := setupScenario(t, nil)

	overview, err := s.service.GetOverview(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "EUR", overview.ReportingCurrency)
	assert.InDelta(t, 467.96, overview.TotalValue, 0.005)

	equity, ok := overview.Sleeve(domain.AssetClassEquity)
	require.True(t, ok)
	assert.InDelta(t, 462.96, equity.Value, 0.005)
	assert.InDelta(t, 0.98932, equity.Weight, 1e-5)
	assert.Equal(t, domain.FreshnessLive, equity.Freshness)

	cash, ok := overview.Sleeve(domain.AssetClassCash)
	require.True(t, ok)
	assert.InDelta(t, 5.0, cash.Value, 1e-9)
	assert.InDelta(t, 0.01068, cash.Weight, 1e-5)
	assert.Equal(t, domain.FreshnessLive, cash.Freshness)

	assert.Equal(t, 0.0, overview.Drift[domain.AssetClassEquity])
}

func TestGetOverview_DriftFromPolicy(t *testing.T) {
	policy := &domain.Policy{Targets: []domain.PolicyTarget{
		{AssetClass: domain.AssetClassEquity, Weight: 0.9, Band: 0.05},
		{AssetClass: domain.AssetClassCash, Weight: 0.1, Band: 0.05},
	}}
	s := setupScenario(t, policy)

	overview, err := s.service.GetOverview(context.Background(), "eur")
	require.NoError(t, err)

	assert.InDelta(t, 0.08932, overview.Drift[domain.AssetClassEquity], 1e-5)
	assert.InDelta(t, -0.08932, overview.Drift[domain.AssetClassCash], 1e-5)
}

func TestGetOverview_RejectsNonBaseCurrency(t *testing.T) {
	s := setupScenario(t, nil)

	// Rates are stored against EUR, so a USD view would divide EUR prices by
	// the EUR rate of 1.0 and label the result USD.
	for _, ccy := range []string{"USD", "gbp"} {
		overview, err := s.service.GetOverview(context.Background(), ccy)
		require.Error(t, err, ccy)
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)
		assert.Nil(t, overview)
	}

	overview, err := s.service.GetOverview(context.Background(), " eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", overview.ReportingCurrency)
	assert.InDelta(t, 467.96, overview.TotalValue, 0.005)
}

func TestGetOverview_HoldingsError(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	md := testhelpers.NewStaticMarketData()
	svc := NewService(&testhelpers.StaticHoldings{Err: errors.New("boom")}, md, md, nil, "EUR", nil, log)

	_, err := svc.GetOverview(context.Background(), "")
	require.Error(t, err)
}

func TestGetOverview_PolicyErrorDegradesToZeroDrift(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	md := testhelpers.NewStaticMarketData()
	holdings := &testhelpers.StaticHoldings{Holdings: []domain.Holding{
		holding(1, "Bonds", "EUR", domain.Position{Quantity: 1, EntryTotal: 100}),
	}}
	svc := NewService(holdings, md, md, &testhelpers.StaticPolicy{Err: errors.New("locked")}, "EUR", nil, log)

	overview, err := svc.GetOverview(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, overview.Drift[domain.AssetClassBonds])
}

func TestResolvePrice(t *testing.T) {
	s := setupScenario(t, nil)

	res, err := s.service.ResolvePrice(context.Background(), s.aaplID)
	require.NoError(t, err)
	assert.InDelta(t, 46.296, res.PricePerUnit, 1e-3)
	assert.Equal(t, "AAPL", res.Code)
	assert.Equal(t, "EUR", res.ReportingCurrency)
	assert.True(t, res.IsLive())

	_, err = s.service.ResolvePrice(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestPositions(t *testing.T) {
	s := setupScenario(t, nil)

	positions, err := s.service.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	top := positions[0]
	assert.Equal(t, "AAPL", top.Code)
	assert.Equal(t, domain.AssetClassEquity, top.AssetClass)
	assert.Equal(t, "USD", top.Currency)
	assert.InDelta(t, 462.96, top.Value, 0.005)
	assert.Equal(t, 400.0, top.CostValue)
	assert.InDelta(t, 62.96, top.UnrealizedPnL, 0.005)
	assert.InDelta(t, 15.74, top.PnLPercent, 0.01)
	assert.InDelta(t, 0.98932, top.Weight, 1e-5)

	assert.Equal(t, "CASH:EUR", positions[1].Code)
	assert.Equal(t, "Broker", positions[1].Account)
}

func TestExportFilename(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 0, 0, time.UTC)
	assert.Equal(t, "holdings_20240309_0705.csv", ExportFilename(ts))
}
