// Package valuation resolves instrument prices into the reporting currency,
// values positions and aggregates them into sleeves.
package valuation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/utils"
)

// cashUnitPrice is the implicit native price of one unit of cash
const cashUnitPrice = 1.0

// Resolution is a per-unit price in the reporting currency
type Resolution struct {
	ObservedAt   time.Time        `json:"observed_at,omitempty"`
	Freshness    domain.Freshness `json:"freshness"`
	PricePerUnit float64          `json:"price"`
}

// IsLive reports whether the price can be used as-is
func (r Resolution) IsLive() bool {
	return r.Freshness == domain.FreshnessLive && r.PricePerUnit > 0
}

func fallbackResolution() Resolution {
	return Resolution{Freshness: domain.FreshnessFallback}
}

// Resolver turns the latest stored observations into a reporting-currency
// price. It never calls the network and never guesses a missing rate.
type Resolver struct {
	prices    domain.PriceReader
	rates     domain.RateReader
	reporting string
}

// NewResolver creates a resolver for one reporting currency
func NewResolver(prices domain.PriceReader, rates domain.RateReader, reportingCurrency string) *Resolver {
	return &Resolver{
		prices:    prices,
		rates:     rates,
		reporting: utils.NormalizeCurrency(reportingCurrency),
	}
}

// ReportingCurrency returns the currency prices are expressed in
func (r *Resolver) ReportingCurrency() string {
	return r.reporting
}

// Resolve returns the price of one unit of inst in the reporting currency.
// Missing or unusable data yields a zero fallback resolution; the error is
// reserved for storage failures.
func (r *Resolver) Resolve(ctx context.Context, inst domain.Instrument) (Resolution, error) {
	sleeve := inst.Sleeve()

	obs, err := r.prices.LatestPrice(ctx, inst.ID)
	if err != nil {
		return fallbackResolution(), fmt.Errorf("failed to read latest price for %s: %w", inst.Code, err)
	}

	var price float64
	var observedAt time.Time
	switch {
	case obs != nil:
		price = obs.Price
		observedAt = obs.Timestamp
	case sleeve == domain.AssetClassCash:
		price = cashUnitPrice
	default:
		return fallbackResolution(), nil
	}

	if price <= 0 {
		return fallbackResolution(), nil
	}

	native := utils.NormalizeCurrency(inst.Currency)
	if sleeve.QuotedInReportingCurrency() || native == r.reporting {
		return Resolution{PricePerUnit: price, Freshness: domain.FreshnessLive, ObservedAt: observedAt}, nil
	}
	// No native currency means no rate to convert with.
	if native == "" {
		return fallbackResolution(), nil
	}

	rate, err := r.rates.LatestRate(ctx, strings.ToUpper(native))
	if err != nil {
		return fallbackResolution(), fmt.Errorf("failed to read latest %s rate: %w", native, err)
	}
	if rate == nil || rate.Rate <= 0 {
		return fallbackResolution(), nil
	}

	return Resolution{
		PricePerUnit: price / rate.Rate,
		Freshness:    domain.FreshnessLive,
		ObservedAt:   observedAt,
	}, nil
}
