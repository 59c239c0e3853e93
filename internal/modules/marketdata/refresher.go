package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/folio/internal/clients/ecb"
	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/metrics"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

// ErrRefreshInProgress is returned when a refresh is already running
var ErrRefreshInProgress = errors.New("price refresh already in progress")

// FXSource provides EUR-based reference rates
type FXSource interface {
	FetchRates(ctx context.Context) (*ecb.Rates, error)
}

// CryptoSource prices crypto instruments directly in a target currency
type CryptoSource interface {
	Prices(ctx context.Context, codes []string, vsCurrency string) (map[string]float64, error)
}

// QuoteSource provides last-traded prices for listed instruments
type QuoteSource interface {
	Price(ctx context.Context, symbol, expectedCurrency string) (*yahoo.Quote, error)
}

// InstrumentLister lists the instruments to price
type InstrumentLister interface {
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
}

// RefreshResult summarizes one refresh run
type RefreshResult struct {
	Errors  map[string]string `json:"errors,omitempty"`
	Rates   int               `json:"rates"`
	Crypto  int               `json:"crypto"`
	Quotes  int               `json:"quotes"`
	Cash    int               `json:"cash"`
	Skipped int               `json:"skipped"`
}

func (r *RefreshResult) fail(source string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[source] = err.Error()
}

// Refresher pulls fresh observations from every upstream source.
// Each source fails independently; observations are appended as they arrive.
type Refresher struct {
	instruments InstrumentLister
	writer      domain.ObservationWriter
	fx          FXSource
	crypto      CryptoSource
	quotes      QuoteSource
	baseCcy     string
	clock       utils.Clock
	metrics     *metrics.Collector
	running     sync.Mutex
	log         zerolog.Logger
}

// NewRefresher creates a new refresher. Any source may be nil to disable it.
func NewRefresher(
	instruments InstrumentLister,
	writer domain.ObservationWriter,
	fx FXSource,
	crypto CryptoSource,
	quotes QuoteSource,
	baseCurrency string,
	clock utils.Clock,
	m *metrics.Collector,
	log zerolog.Logger,
) *Refresher {
	return &Refresher{
		instruments: instruments,
		writer:      writer,
		fx:          fx,
		crypto:      crypto,
		quotes:      quotes,
		baseCcy:     utils.NormalizeCurrency(baseCurrency),
		clock:       clock,
		metrics:     m,
		log:         log.With().Str("service", "price_refresh").Logger(),
	}
}

// Refresh runs FX, crypto, listed quotes and cash in that order
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !r.running.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer r.running.Unlock()

	defer utils.OperationTimer("price_refresh", r.log)()

	result := &RefreshResult{}
	now := r.clock.Now()

	r.refreshRates(ctx, now, result)

	instruments, err := r.instruments.ListInstruments(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list instruments: %w", err)
	}

	var crypto, listed []domain.Instrument
	for _, inst := range instruments {
		switch inst.Sleeve() {
		case domain.AssetClassCrypto:
			crypto = append(crypto, inst)
		case domain.AssetClassEquity, domain.AssetClassCommodity:
			listed = append(listed, inst)
		case domain.AssetClassCash:
			if r.appendPrice(ctx, inst, 1.0, now, result) {
				result.Cash++
			}
		default:
			result.Skipped++
		}
	}

	r.refreshCrypto(ctx, crypto, now, result)
	r.refreshQuotes(ctx, listed, now, result)

	r.metrics.ObservationsWritten("price", result.Crypto+result.Quotes+result.Cash)
	r.metrics.ObservationsWritten("rate", result.Rates)

	r.log.Info().
		Int("rates", result.Rates).
		Int("crypto", result.Crypto).
		Int("quotes", result.Quotes).
		Int("cash", result.Cash).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("Price refresh completed")

	return result, nil
}

// refreshRates stores one rate per currency in the reporting-currency
// convention. ECB publishes per EUR, so other reporting currencies are
// rebased through their own EUR rate.
func (r *Refresher) refreshRates(ctx context.Context, now time.Time, result *RefreshResult) {
	if r.fx == nil {
		return
	}

	rates, err := r.fx.FetchRates(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("FX refresh failed")
		r.metrics.RefreshFailed("ecb")
		result.fail("ecb", err)
		return
	}

	divisor := 1.0
	if r.baseCcy != "EUR" {
		baseRate, ok := rates.Rates[r.baseCcy]
		if !ok || baseRate <= 0 {
			err := fmt.Errorf("no ECB rate for reporting currency %s", r.baseCcy)
			r.log.Error().Err(err).Msg("FX refresh failed")
			r.metrics.RefreshFailed("ecb")
			result.fail("ecb", err)
			return
		}
		divisor = baseRate
	}

	for ccy, rate := range rates.Rates {
		if err := r.writer.AppendRate(ctx, domain.ExchangeRate{
			Currency:  ccy,
			Rate:      rate / divisor,
			Timestamp: now,
		}); err != nil {
			r.log.Error().Err(err).Str("currency", ccy).Msg("Failed to store rate")
			result.fail("rate:"+ccy, err)
			continue
		}
		result.Rates++
	}
}

func (r *Refresher) refreshCrypto(ctx context.Context, instruments []domain.Instrument, now time.Time, result *RefreshResult) {
	if r.crypto == nil || len(instruments) == 0 {
		return
	}

	codes := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		codes = append(codes, inst.Code)
	}

	prices, err := r.crypto.Prices(ctx, codes, r.baseCcy)
	if err != nil {
		r.log.Error().Err(err).Msg("Crypto refresh failed")
		r.metrics.RefreshFailed("coingecko")
		result.fail("coingecko", err)
	}

	for _, inst := range instruments {
		price, ok := prices[inst.Code]
		if !ok {
			continue
		}
		if r.appendPrice(ctx, inst, price, now, result) {
			result.Crypto++
		}
	}
}

func (r *Refresher) refreshQuotes(ctx context.Context, instruments []domain.Instrument, now time.Time, result *RefreshResult) {
	if r.quotes == nil {
		return
	}

	for _, inst := range instruments {
		if ctx.Err() != nil {
			result.fail("yahoo", ctx.Err())
			return
		}

		currency := strings.ToUpper(inst.Currency)
		q, err := r.quotes.Price(ctx, inst.Code, currency)
		if err != nil {
			r.log.Warn().Err(err).Str("code", inst.Code).Msg("No quote")
			r.metrics.RefreshFailed("yahoo")
			result.fail("yahoo:"+inst.Code, err)
			continue
		}
		if currency != "" && q.Currency != currency {
			err := fmt.Errorf("quote for %s is in %s, instrument is in %s", q.Symbol, q.Currency, currency)
			r.log.Warn().Err(err).Msg("Quote currency mismatch")
			result.fail("yahoo:"+inst.Code, err)
			continue
		}

		if r.appendPrice(ctx, inst, q.Price, now, result) {
			result.Quotes++
		}
	}
}

func (r *Refresher) appendPrice(ctx context.Context, inst domain.Instrument, price float64, now time.Time, result *RefreshResult) bool {
	if err := r.writer.AppendPrice(ctx, domain.PriceObservation{
		InstrumentID: inst.ID,
		Price:        price,
		Timestamp:    now,
	}); err != nil {
		r.log.Error().Err(err).Str("code", inst.Code).Msg("Failed to store price")
		result.fail("price:"+inst.Code, err)
		return false
	}
	return true
}
