package valuation

import (
	"context"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// PositionValuation is one holding valued in the reporting currency
type PositionValuation struct {
	Holding      domain.Holding
	Sleeve       domain.AssetClass
	Freshness    domain.Freshness
	Source       string // SourcePrice, SourceClosed or a fallback strategy name
	PricePerUnit float64
	Value        float64
}

// Valuer values holdings with a resolver and an ordered fallback list
type Valuer struct {
	resolver  *Resolver
	fallbacks []FallbackStrategy
	log       zerolog.Logger
}

// NewValuer creates a valuer using DefaultFallbacks
func NewValuer(resolver *Resolver, log zerolog.Logger) *Valuer {
	return &Valuer{
		resolver:  resolver,
		fallbacks: DefaultFallbacks,
		log:       log.With().Str("component", "valuer").Logger(),
	}
}

// Value values one holding. It never fails: a storage error while resolving
// is logged and the position is valued by fallback.
func (v *Valuer) Value(ctx context.Context, h domain.Holding) PositionValuation {
	pv := PositionValuation{
		Holding:   h,
		Sleeve:    h.Instrument.Sleeve(),
		Freshness: domain.FreshnessFallback,
	}

	if h.Position.IsClosed() {
		pv.Source = SourceClosed
		return pv
	}

	res, err := v.resolver.Resolve(ctx, h.Instrument)
	if err != nil {
		v.log.Warn().Err(err).Str("code", h.Instrument.Code).Msg("Price resolution failed, using fallback")
	}

	if err == nil && res.IsLive() {
		pv.PricePerUnit = res.PricePerUnit
		pv.Value = h.Position.Quantity * res.PricePerUnit
		pv.Freshness = domain.FreshnessLive
		pv.Source = SourcePrice
		return pv
	}

	value, source := ApplyFallbacks(v.fallbacks, h.Position)
	if value < 0 {
		value = 0
	}
	pv.Value = value
	pv.Source = source
	return pv
}

// ValueAll values every holding in order
func (v *Valuer) ValueAll(ctx context.Context, holdings []domain.Holding) []PositionValuation {
	out := make([]PositionValuation, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, v.Value(ctx, h))
	}
	return out
}
