package rebalancing

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// ErrNoPolicy is returned when a rebalance is requested without a policy
var ErrNoPolicy = errors.New("no policy configured")

// OverviewProvider values the portfolio
type OverviewProvider interface {
	GetOverview(ctx context.Context, reportingCurrency string) (*valuation.Overview, error)
}

// Service produces rebalance suggestions for the live portfolio
type Service struct {
	overviews OverviewProvider
	policies  domain.PolicyReader
	advisor   *Advisor
	log       zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(overviews OverviewProvider, policies domain.PolicyReader, log zerolog.Logger) *Service {
	return &Service{
		overviews: overviews,
		policies:  policies,
		advisor:   NewAdvisor(),
		log:       log.With().Str("service", "rebalancing").Logger(),
	}
}

// SuggestRebalance values the portfolio in the base currency and compares
// it with the active policy
func (s *Service) SuggestRebalance(ctx context.Context) (*Result, error) {
	policy, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if policy == nil {
		return nil, ErrNoPolicy
	}

	overview, err := s.overviews.GetOverview(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to compute overview: %w", err)
	}

	result := s.advisor.Suggest(overview, policy)

	s.log.Debug().
		Int("out_of_band", len(result.OutOfBand)).
		Int("trades", len(result.Trades)).
		Msg("Rebalance suggested")

	return &result, nil
}
