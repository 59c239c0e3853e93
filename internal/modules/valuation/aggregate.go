package valuation

import (
	"github.com/aristath/folio/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// SleeveValue is one asset-class bucket of an overview
type SleeveValue struct {
	AssetClass domain.AssetClass `json:"asset_class"`
	Freshness  domain.Freshness  `json:"freshness"`
	Value      float64           `json:"value"`
	Weight     float64           `json:"weight"`
}

// Overview is the valued portfolio grouped by sleeve
type Overview struct {
	Drift             map[domain.AssetClass]float64 `json:"drift"`
	ReportingCurrency string                        `json:"reporting_currency"`
	Sleeves           []SleeveValue                 `json:"by_sleeve"`
	TotalValue        float64                       `json:"total_value"`
}

// Sleeve returns the named sleeve, if present
func (o *Overview) Sleeve(class domain.AssetClass) (SleeveValue, bool) {
	for _, s := range o.Sleeves {
		if s.AssetClass == class {
			return s, true
		}
	}
	return SleeveValue{}, false
}

// SleeveValues returns value and weight keyed by sleeve name
func (o *Overview) SleeveValues() (values, weights map[string]float64) {
	values = make(map[string]float64, len(o.Sleeves))
	weights = make(map[string]float64, len(o.Sleeves))
	for _, s := range o.Sleeves {
		values[string(s.AssetClass)] = s.Value
		weights[string(s.AssetClass)] = s.Weight
	}
	return values, weights
}

// Aggregate groups valued positions into sleeves. Sleeves keep the order in
// which they first appear. policy may be nil, in which case every drift is 0.
func Aggregate(valuations []PositionValuation, policy *domain.Policy, reportingCurrency string) *Overview {
	var order []domain.AssetClass
	contributions := make(map[domain.AssetClass][]float64)
	live := make(map[domain.AssetClass]bool)

	all := make([]float64, 0, len(valuations))
	for _, pv := range valuations {
		if _, seen := contributions[pv.Sleeve]; !seen {
			order = append(order, pv.Sleeve)
			contributions[pv.Sleeve] = nil
		}
		contributions[pv.Sleeve] = append(contributions[pv.Sleeve], pv.Value)
		all = append(all, pv.Value)
		if pv.Freshness == domain.FreshnessLive {
			live[pv.Sleeve] = true
		}
	}

	total := floats.Sum(all)

	overview := &Overview{
		ReportingCurrency: reportingCurrency,
		TotalValue:        total,
		Sleeves:           make([]SleeveValue, 0, len(order)),
		Drift:             make(map[domain.AssetClass]float64, len(order)),
	}

	for _, class := range order {
		value := floats.Sum(contributions[class])
		weight := 0.0
		if total > 0 {
			weight = value / total
		}

		freshness := domain.FreshnessFallback
		if live[class] {
			freshness = domain.FreshnessLive
		}

		overview.Sleeves = append(overview.Sleeves, SleeveValue{
			AssetClass: class,
			Value:      value,
			Weight:     weight,
			Freshness:  freshness,
		})

		drift := 0.0
		if target, ok := policy.TargetFor(class); ok {
			drift = weight - target.Weight
		}
		overview.Drift[class] = drift
	}

	return overview
}
