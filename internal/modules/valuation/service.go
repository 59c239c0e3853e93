package valuation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/metrics"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

var (
	// ErrInstrumentNotFound is returned when resolving an unknown instrument
	ErrInstrumentNotFound = errors.New("instrument not found")
	// ErrUnsupportedCurrency is returned when an overview is requested in a
	// currency other than the base currency. Stored rates and crypto quotes
	// are all relative to the base currency.
	ErrUnsupportedCurrency = errors.New("unsupported reporting currency")
)

// PriceResult is the resolved price of one instrument
type PriceResult struct {
	Resolution
	Code              string `json:"code"`
	ReportingCurrency string `json:"reporting_currency"`
	InstrumentID      int64  `json:"instrument_id"`
}

// PositionDetail is one row of the holdings table
type PositionDetail struct {
	Name           string            `json:"name"`
	Code           string            `json:"code"`
	AssetClass     domain.AssetClass `json:"asset_class"`
	InstrumentType string            `json:"instrument_type"`
	Account        string            `json:"account"`
	Currency       string            `json:"currency"`
	Freshness      domain.Freshness  `json:"freshness"`
	Source         string            `json:"source"`
	Quantity       float64           `json:"quantity"`
	Price          float64           `json:"price"`
	Value          float64           `json:"value"`
	CostValue      float64           `json:"cost_value"`
	UnrealizedPnL  float64           `json:"unrealized_pnl"`
	PnLPercent     float64           `json:"pnl_percent"`
	Weight         float64           `json:"weight"`
}

// Service exposes the live valuation views
type Service struct {
	holdings     domain.HoldingsReader
	prices       domain.PriceReader
	rates        domain.RateReader
	policies     domain.PolicyReader
	baseCurrency string
	metrics      *metrics.Collector
	log          zerolog.Logger
}

// NewService creates a new valuation service
func NewService(
	holdings domain.HoldingsReader,
	prices domain.PriceReader,
	rates domain.RateReader,
	policies domain.PolicyReader,
	baseCurrency string,
	m *metrics.Collector,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:     holdings,
		prices:       prices,
		rates:        rates,
		policies:     policies,
		baseCurrency: utils.NormalizeCurrency(baseCurrency),
		metrics:      m,
		log:          log.With().Str("service", "valuation").Logger(),
	}
}

// BaseCurrency returns the configured reporting currency
func (s *Service) BaseCurrency() string {
	return s.baseCurrency
}

func (s *Service) currency(requested string) (string, error) {
	c := utils.NormalizeCurrency(requested)
	if c == "" || c == s.baseCurrency {
		return s.baseCurrency, nil
	}
	return "", fmt.Errorf("%w: %s (base currency is %s)", ErrUnsupportedCurrency, c, s.baseCurrency)
}

func (s *Service) valuer(reportingCurrency string) *Valuer {
	return NewValuer(NewResolver(s.prices, s.rates, reportingCurrency), s.log)
}

// GetOverview values every holding and aggregates by sleeve. An empty
// currency means the base currency; any other currency is rejected with
// ErrUnsupportedCurrency. A missing policy yields zero drift.
func (s *Service) GetOverview(ctx context.Context, reportingCurrency string) (*Overview, error) {
	ccy, err := s.currency(reportingCurrency)
	if err != nil {
		return nil, err
	}

	holdings, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	var policy *domain.Policy
	if s.policies != nil {
		policy, err = s.policies.GetPolicy(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to load policy, drift will be zero")
			policy = nil
		}
	}

	overview := Aggregate(s.valuer(ccy).ValueAll(ctx, holdings), policy, ccy)

	values, weights := overview.SleeveValues()
	s.metrics.ObserveValuation(overview.TotalValue, values, weights)

	return overview, nil
}

// ResolvePrice resolves the current per-unit price of an instrument in the
// base currency
func (s *Service) ResolvePrice(ctx context.Context, instrumentID int64) (*PriceResult, error) {
	inst, err := s.holdings.GetInstrument(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument %d: %w", instrumentID, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %d", ErrInstrumentNotFound, instrumentID)
	}

	res, err := NewResolver(s.prices, s.rates, s.baseCurrency).Resolve(ctx, *inst)
	if err != nil {
		return nil, err
	}

	return &PriceResult{
		Resolution:        res,
		Code:              inst.Code,
		ReportingCurrency: s.baseCurrency,
		InstrumentID:      inst.ID,
	}, nil
}

// Positions returns every holding valued in the base currency, largest first
func (s *Service) Positions(ctx context.Context) ([]PositionDetail, error) {
	defer utils.OperationTimer("positions", s.log)()

	holdings, err := s.holdings.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	valuations := s.valuer(s.baseCurrency).ValueAll(ctx, holdings)

	total := 0.0
	for _, pv := range valuations {
		total += pv.Value
	}

	details := make([]PositionDetail, 0, len(valuations))
	for _, pv := range valuations {
		inst := pv.Holding.Instrument
		pos := pv.Holding.Position

		currency := inst.Currency
		if pv.Sleeve.QuotedInReportingCurrency() {
			currency = s.baseCurrency
		}

		cost, _ := ApplyFallbacks(DefaultFallbacks, pos)
		if pos.IsClosed() {
			cost = 0
		}

		d := PositionDetail{
			Name:           inst.DisplayName(),
			Code:           inst.Code,
			AssetClass:     pv.Sleeve,
			InstrumentType: inst.InstrumentType,
			Account:        pv.Holding.AccountName,
			Currency:       currency,
			Freshness:      pv.Freshness,
			Source:         pv.Source,
			Quantity:       pos.Quantity,
			Price:          pv.PricePerUnit,
			Value:          pv.Value,
			CostValue:      cost,
			UnrealizedPnL:  pv.Value - cost,
		}
		if cost > 0 {
			d.PnLPercent = d.UnrealizedPnL / cost * 100
		}
		if total > 0 {
			d.Weight = pv.Value / total
		}
		details = append(details, d)
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Value > details[j].Value
	})

	return details, nil
}

// ExportFilename returns the download name for a positions export
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("holdings_%s.csv", now.Format("20060102_1504"))
}
