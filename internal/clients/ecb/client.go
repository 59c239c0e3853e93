// Package ecb fetches the European Central Bank daily reference rates.
package ecb

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/folio/internal/clients/upstream"
	"github.com/rs/zerolog"
)

// DefaultURL is the ECB daily reference rate feed
const DefaultURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// Rates is one ECB publication: units of each currency per one EUR
type Rates struct {
	Date  time.Time
	Rates map[string]float64
}

// Client for the ECB reference rate feed
type Client struct {
	url      string
	upstream *upstream.Client
	log      zerolog.Logger
}

// NewClient creates a new ECB client
func NewClient(url string, up *upstream.Client, log zerolog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:      url,
		upstream: up,
		log:      log.With().Str("client", "ecb").Logger(),
	}
}

type envelope struct {
	Cube struct {
		Days []struct {
			Time  string `xml:"time,attr"`
			Rates []struct {
				Currency string `xml:"currency,attr"`
				Rate     string `xml:"rate,attr"`
			} `xml:"Cube"`
		} `xml:"Cube"`
	} `xml:"Cube"`
}

// FetchRates returns the latest published rates. EUR is always present at 1.0.
func (c *Client) FetchRates(ctx context.Context) (*Rates, error) {
	body, err := c.upstream.Get(ctx, c.url, map[string]string{"Accept": "application/xml"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ECB rates: %w", err)
	}

	return c.parse(body)
}

func (c *Client) parse(body []byte) (*Rates, error) {
	var env envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse ECB XML: %w", err)
	}

	out := &Rates{Rates: map[string]float64{"EUR": 1.0}}

	for _, day := range env.Cube.Days {
		if t, err := time.Parse("2006-01-02", day.Time); err == nil && t.After(out.Date) {
			out.Date = t
		}
		for _, r := range day.Rates {
			ccy := strings.ToUpper(strings.TrimSpace(r.Currency))
			if ccy == "" {
				continue
			}
			rate, err := strconv.ParseFloat(strings.TrimSpace(r.Rate), 64)
			if err != nil || rate <= 0 {
				c.log.Warn().Str("currency", ccy).Str("rate", r.Rate).Msg("Invalid ECB rate")
				continue
			}
			out.Rates[ccy] = rate
		}
	}

	if len(out.Rates) == 1 {
		return nil, fmt.Errorf("ECB response contained no rates")
	}

	c.log.Info().Int("currencies", len(out.Rates)).Msg("Fetched ECB rates")
	return out, nil
}
