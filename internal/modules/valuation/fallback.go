package valuation

import "github.com/aristath/folio/internal/domain"

// Valuation sources recorded on each position
const (
	SourcePrice  = "price"
	SourceClosed = "closed"
)

// FallbackStrategy estimates a position's value without a usable price.
// Estimate returns ok=false when the strategy does not apply.
type FallbackStrategy struct {
	Name     string
	Estimate func(pos domain.Position) (value float64, ok bool)
}

// DefaultFallbacks in priority order: what was paid in total, then the
// per-unit cost times quantity, then zero.
var DefaultFallbacks = []FallbackStrategy{
	{
		Name: "entry_total",
		Estimate: func(pos domain.Position) (float64, bool) {
			return pos.EntryTotal, pos.EntryTotal > 0
		},
	},
	{
		Name: "cost_basis",
		Estimate: func(pos domain.Position) (float64, bool) {
			if pos.CostBasis > 0 && pos.Quantity > 0 {
				return pos.CostBasis * pos.Quantity, true
			}
			return 0, false
		},
	},
	{
		Name: "zero",
		Estimate: func(domain.Position) (float64, bool) {
			return 0, true
		},
	},
}

// ApplyFallbacks returns the value of the first applicable strategy and its
// name. An empty list values the position at zero.
func ApplyFallbacks(strategies []FallbackStrategy, pos domain.Position) (float64, string) {
	for _, s := range strategies {
		if v, ok := s.Estimate(pos); ok {
			return v, s.Name
		}
	}
	return 0, "zero"
}
