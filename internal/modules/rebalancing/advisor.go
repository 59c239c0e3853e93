// Package rebalancing compares sleeve weights with the policy and proposes
// trades for sleeves outside their band.
package rebalancing

import (
	"math"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/valuation"
)

// Trade actions
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Trade is the value to move into or out of one sleeve
type Trade struct {
	AssetClass domain.AssetClass `json:"asset_class"`
	Action     string            `json:"action"`
	Amount     float64           `json:"amount"`
}

// Result lists the out-of-band sleeves and the trades that bring each back
// to target
type Result struct {
	OutOfBand []domain.AssetClass `json:"out_of_band"`
	Trades    []Trade             `json:"trades"`
}

// Advisor is a threshold-triggered rebalancer. Each sleeve is evaluated on
// its own: no trade netting, costs or lot sizes.
type Advisor struct{}

// NewAdvisor creates an advisor
func NewAdvisor() *Advisor {
	return &Advisor{}
}

// Suggest evaluates every overview sleeve that has a policy target. A
// sleeve is out of band when |weight - target| > band, strictly. Sleeves
// without a target and targets without a sleeve are ignored.
func (a *Advisor) Suggest(overview *valuation.Overview, policy *domain.Policy) Result {
	result := Result{
		OutOfBand: []domain.AssetClass{},
		Trades:    []Trade{},
	}
	if overview == nil || policy == nil {
		return result
	}

	for _, sleeve := range overview.Sleeves {
		target, ok := policy.TargetFor(sleeve.AssetClass)
		if !ok {
			continue
		}

		// Ties are judged in float64 without an epsilon: 0.8-0.7 exceeds a
		// 0.1 band by rounding and is flagged.
		drift := sleeve.Weight - target.Weight
		if math.Abs(drift) <= target.Band {
			continue
		}
		result.OutOfBand = append(result.OutOfBand, sleeve.AssetClass)

		amount := target.Weight*overview.TotalValue - sleeve.Value
		// Flagged, but there is nothing to trade.
		if amount == 0 {
			continue
		}

		action := ActionBuy
		if amount < 0 {
			action = ActionSell
		}
		result.Trades = append(result.Trades, Trade{
			AssetClass: sleeve.AssetClass,
			Action:     action,
			Amount:     math.Abs(amount),
		})
	}

	return result
}
