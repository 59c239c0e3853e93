// Package yahoo fetches last-traded prices from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/upstream"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public chart endpoint
const DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// EuropeanSuffixes are exchange suffixes tried when a symbol does not quote
// in the expected currency
var EuropeanSuffixes = []string{".MI", ".DE", ".AS", ".L", ".PA", ".SW"}

// ErrNoQuote is returned when no listing yields a usable price
var ErrNoQuote = errors.New("no quote available")

// Quote is a last-traded price in the listing currency
type Quote struct {
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
}

// Client for the Yahoo chart API
type Client struct {
	baseURL  string
	upstream *upstream.Client
	cache    *clientdata.Cache[Quote]
	log      zerolog.Logger
}

// NewClient creates a new Yahoo client. cache may be nil to disable caching.
func NewClient(baseURL string, up *upstream.Client, cache *clientdata.Cache[Quote], log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		upstream: up,
		cache:    cache,
		log:      log.With().Str("client", "yahoo").Logger(),
	}
}

// Price returns the last-traded price for symbol. When expectedCurrency is
// set and the symbol quotes in another currency, the European listings of
// the same base symbol are tried and the first one quoting in EUR or the
// expected currency wins.
func (c *Client) Price(ctx context.Context, symbol, expectedCurrency string) (*Quote, error) {
	symbol = strings.TrimSpace(symbol)
	expected := strings.ToUpper(expectedCurrency)

	if c.cache != nil {
		if q, ok := c.cache.Get(symbol); ok {
			return &q, nil
		}
	}

	q, err := c.resolve(ctx, symbol, expected)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(symbol, *q)
	}
	return q, nil
}

func (c *Client) resolve(ctx context.Context, symbol, expected string) (*Quote, error) {
	q, err := c.fetch(ctx, symbol)
	if err == nil {
		if expected == "" || q.Currency == expected {
			return q, nil
		}
		c.log.Debug().
			Str("symbol", symbol).
			Str("currency", q.Currency).
			Str("expected", expected).
			Msg("Listing quotes in another currency, trying European exchanges")
	} else if ctx.Err() != nil {
		return nil, err
	}

	base := symbol
	if i := strings.Index(symbol, "."); i > 0 {
		base = symbol[:i]
	}

	for _, suffix := range EuropeanSuffixes {
		candidate := base + suffix
		if candidate == symbol {
			continue
		}

		alt, err := c.fetch(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			continue
		}
		if alt.Currency == "EUR" || (expected != "" && alt.Currency == expected) {
			c.log.Debug().Str("symbol", symbol).Str("listing", candidate).Msg("Found European listing")
			return alt, nil
		}
	}

	return nil, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (c *Client) fetch(ctx context.Context, symbol string) (*Quote, error) {
	body, err := c.upstream.Get(ctx, c.baseURL+"/"+url.PathEscape(symbol),
		map[string]string{"User-Agent": browserUserAgent})
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chart response for %s: %w", symbol, err)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}

	currency := strings.ToUpper(meta.Currency)
	if currency == "" {
		currency = "USD"
	}

	return &Quote{Symbol: symbol, Currency: currency, Price: meta.RegularMarketPrice}, nil
}
