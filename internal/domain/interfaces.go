package domain

import "context"

// Readers return (nil, nil) when the requested record does not exist.

// HoldingsReader reads positions joined with instruments and accounts
type HoldingsReader interface {
	ListHoldings(ctx context.Context) ([]Holding, error)
	GetInstrument(ctx context.Context, id int64) (*Instrument, error)
}

// PriceReader returns the latest price observation for an instrument
type PriceReader interface {
	LatestPrice(ctx context.Context, instrumentID int64) (*PriceObservation, error)
}

// RateReader returns the latest exchange rate observation for a currency
type RateReader interface {
	LatestRate(ctx context.Context, currency string) (*ExchangeRate, error)
}

// PolicyReader returns the active policy
type PolicyReader interface {
	GetPolicy(ctx context.Context) (*Policy, error)
}

// ObservationWriter appends price and exchange rate observations
type ObservationWriter interface {
	AppendPrice(ctx context.Context, obs PriceObservation) error
	AppendRate(ctx context.Context, rate ExchangeRate) error
}
