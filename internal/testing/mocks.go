package testing

import (
	"context"
	"sync"

	"github.com/aristath/folio/internal/domain"
)

// StaticMarketData is an in-memory PriceReader and RateReader
type StaticMarketData struct {
	mu     sync.RWMutex
	prices map[int64]domain.PriceObservation
	rates  map[string]domain.ExchangeRate
	err    error
}

// NewStaticMarketData creates an empty market data fake
func NewStaticMarketData() *StaticMarketData {
	return &StaticMarketData{
		prices: make(map[int64]domain.PriceObservation),
		rates:  make(map[string]domain.ExchangeRate),
	}
}

// SetPrice sets the latest price for an instrument
func (m *StaticMarketData) SetPrice(instrumentID int64, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[instrumentID] = domain.PriceObservation{InstrumentID: instrumentID, Price: price}
}

// SetRate sets the latest rate for a currency
func (m *StaticMarketData) SetRate(currency string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[currency] = domain.ExchangeRate{Currency: currency, Rate: rate}
}

// SetError makes every lookup fail
func (m *StaticMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LatestPrice implements domain.PriceReader
func (m *StaticMarketData) LatestPrice(_ context.Context, instrumentID int64) (*domain.PriceObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	obs, ok := m.prices[instrumentID]
	if !ok {
		return nil, nil
	}
	return &obs, nil
}

// LatestRate implements domain.RateReader
func (m *StaticMarketData) LatestRate(_ context.Context, currency string) (*domain.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	rate, ok := m.rates[currency]
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

// StaticHoldings is an in-memory HoldingsReader
type StaticHoldings struct {
	Holdings []domain.Holding
	Err      error
}

// ListHoldings implements domain.HoldingsReader
func (s *StaticHoldings) ListHoldings(_ context.Context) ([]domain.Holding, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Holdings, nil
}

// GetInstrument implements domain.HoldingsReader
func (s *StaticHoldings) GetInstrument(_ context.Context, id int64) (*domain.Instrument, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	for _, h := range s.Holdings {
		if h.Instrument.ID == id {
			inst := h.Instrument
			return &inst, nil
		}
	}
	return nil, nil
}

// StaticPolicy is an in-memory PolicyReader
type StaticPolicy struct {
	Policy *domain.Policy
	Err    error
}

// GetPolicy implements domain.PolicyReader
func (s *StaticPolicy) GetPolicy(_ context.Context) (*domain.Policy, error) {
	return s.Policy, s.Err
}
