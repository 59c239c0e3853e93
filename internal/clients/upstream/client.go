// Package upstream is the shared HTTP transport for market data sources:
// a per-source rate limit, a circuit breaker and bounded retries.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/folio/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Defaults for every upstream source
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultRPS         = 2.0
	DefaultBurst       = 4

	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config configures one upstream source
type Config struct {
	Name        string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	RPS         float64
	Burst       int
	UserAgent   string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.RPS <= 0 {
		c.RPS = DefaultRPS
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.UserAgent == "" {
		c.UserAgent = "folio/1.0"
	}
	return c
}

// Client performs GET requests against one upstream source
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Collector
	log     zerolog.Logger
}

// New creates an upstream client. metrics may be nil.
func New(cfg Config, m *metrics.Collector, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	l := log.With().Str("client", cfg.Name).Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 4xx means the request was wrong, not that the source is down.
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: breaker,
		metrics: m,
		log:     l,
	}
}

// Name returns the source name
func (c *Client) Name() string {
	return c.cfg.Name
}

// Get fetches url and returns the body. 429, 5xx and transport errors are
// retried with exponential backoff; other statuses fail immediately.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, url, headers)
		})
		if err == nil {
			c.metrics.UpstreamRequest(c.cfg.Name, "ok")
			return result.([]byte), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.UpstreamRequest(c.cfg.Name, "open")
			return nil, fmt.Errorf("%s unavailable: %w", c.cfg.Name, err)
		}
		if !retryable(ctx, err) || attempt == c.cfg.MaxAttempts {
			break
		}

		delay := c.cfg.BaseDelay * time.Duration(1<<(attempt-1))
		c.metrics.UpstreamRequest(c.cfg.Name, "retry")
		c.log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying upstream request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.metrics.UpstreamRequest(c.cfg.Name, "error")
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.cfg.Name, err)
	}
	return body, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
