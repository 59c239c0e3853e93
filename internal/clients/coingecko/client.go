// Package coingecko fetches crypto spot prices from the CoinGecko API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/aristath/folio/internal/clients/upstream"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public CoinGecko API
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// pinnedSymbols are stable tokens priced without a request
var pinnedSymbols = map[string]float64{
	"EURX": 1.0,
}

// SymbolIDs maps ticker symbols onto CoinGecko coin ids
var SymbolIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"LINK":  "chainlink",
	"ADA":   "cardano",
	"AAVE":  "aave",
	"INJ":   "injective-protocol",
	"FIL":   "filecoin",
	"NEXO":  "nexo",
	"SUI":   "sui",
	"PYTH":  "pyth-network",
	"APTOS": "aptos",
	"ENA":   "ethena",
	"AI16Z": "ai16z",
	"EURX":  "eurx",
}

// Symbol extracts the ticker from an instrument code such as "CRYPTO:BTC"
func Symbol(code string) string {
	if i := strings.LastIndex(code, ":"); i >= 0 {
		code = code[i+1:]
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Client for the CoinGecko simple price API
type Client struct {
	baseURL  string
	upstream *upstream.Client
	log      zerolog.Logger
}

// NewClient creates a new CoinGecko client
func NewClient(baseURL string, up *upstream.Client, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		upstream: up,
		log:      log.With().Str("client", "coingecko").Logger(),
	}
}

// Prices returns a price in vsCurrency for each instrument code it can
// resolve, keyed by the code as given. Unsupported symbols are skipped.
// When the bulk request fails each coin is requested on its own.
func (c *Client) Prices(ctx context.Context, codes []string, vsCurrency string) (map[string]float64, error) {
	vs := strings.ToLower(vsCurrency)
	prices := make(map[string]float64)
	idToCodes := make(map[string][]string)

	for _, code := range codes {
		sym := Symbol(code)
		if p, ok := pinnedSymbols[sym]; ok {
			prices[code] = p
			continue
		}
		id, ok := SymbolIDs[sym]
		if !ok {
			c.log.Warn().Str("symbol", sym).Msg("Unsupported crypto symbol")
			continue
		}
		idToCodes[id] = append(idToCodes[id], code)
	}

	if len(idToCodes) == 0 {
		return prices, nil
	}

	ids := make([]string, 0, len(idToCodes))
	for id := range idToCodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	quotes, err := c.fetch(ctx, ids, vs)
	if err != nil {
		c.log.Warn().Err(err).Msg("Bulk crypto price fetch failed, falling back to individual requests")

		quotes = make(map[string]map[string]float64)
		failed := 0
		for _, id := range ids {
			single, err := c.fetch(ctx, []string{id}, vs)
			if err != nil {
				c.log.Error().Err(err).Str("coin", id).Msg("Crypto price fetch failed")
				failed++
				continue
			}
			for k, v := range single {
				quotes[k] = v
			}
		}
		if failed == len(ids) {
			return prices, fmt.Errorf("all crypto price requests failed: %w", err)
		}
	}

	for id, byCurrency := range quotes {
		price, ok := byCurrency[vs]
		if !ok || price <= 0 {
			continue
		}
		for _, code := range idToCodes[id] {
			prices[code] = price
		}
	}

	c.log.Info().Int("prices", len(prices)).Str("vs", vs).Msg("Fetched crypto prices")
	return prices, nil
}

func (c *Client) fetch(ctx context.Context, ids []string, vs string) (map[string]map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vs)

	body, err := c.upstream.Get(ctx, c.baseURL+"/simple/price?"+q.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var out map[string]map[string]float64
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse CoinGecko response: %w", err)
	}
	return out, nil
}
