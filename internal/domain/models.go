// Package domain provides core domain models and types.
package domain

import "time"

// Account is a brokerage or custody account holding positions
type Account struct {
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Institution string    `json:"institution"`
	Currency    string    `json:"currency"`
	ID          int64     `json:"id"`
}

// Instrument is anything that can be held: a listed security, a fund,
// a crypto asset or a cash balance.
type Instrument struct {
	Code           string `json:"code"` // ISIN, ticker or synthetic code (CASH:EUR)
	Name           string `json:"name"`
	AssetClass     string `json:"asset_class"` // raw label as ingested
	Currency       string `json:"currency"`    // native quote currency
	InstrumentType string `json:"instrument_type,omitempty"`
	ID             int64  `json:"id"`
}

// Sleeve returns the normalized asset class of the instrument
func (i Instrument) Sleeve() AssetClass {
	return NormalizeAssetClass(i.AssetClass)
}

// DisplayName returns the name, falling back to the code
func (i Instrument) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Code
}

// Position is the point-in-time holding of one instrument in one account
type Position struct {
	UpdatedAt    time.Time `json:"updated_at"`
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	InstrumentID int64     `json:"instrument_id"`
	Quantity     float64   `json:"quantity"`
	CostBasis    float64   `json:"cost_basis"`  // per unit
	EntryTotal   float64   `json:"entry_total"` // total amount paid
}

// IsClosed reports whether the position no longer holds anything
func (p Position) IsClosed() bool {
	return p.Quantity <= 0
}

// Holding joins a position with its instrument and account name
type Holding struct {
	AccountName string     `json:"account"`
	Instrument  Instrument `json:"instrument"`
	Position    Position   `json:"position"`
}

// PriceObservation is one observed per-unit price in the instrument's native currency
type PriceObservation struct {
	Timestamp    time.Time `json:"ts"`
	ID           int64     `json:"id"`
	InstrumentID int64     `json:"instrument_id"`
	Price        float64   `json:"price"`
}

// ExchangeRate is one observed rate in the ECB convention: Rate units of
// Currency buy one reporting unit, so nativePrice / Rate is the reporting value.
type ExchangeRate struct {
	Timestamp time.Time `json:"ts"`
	Currency  string    `json:"currency"`
	ID        int64     `json:"id"`
	Rate      float64   `json:"rate"`
}

// PolicyTarget is the desired weight of one sleeve and its tolerance band
type PolicyTarget struct {
	AssetClass AssetClass `json:"asset_class" yaml:"asset_class"`
	Weight     float64    `json:"weight" yaml:"weight"`
	Band       float64    `json:"band" yaml:"band"`
}

// Policy is the single active target allocation
type Policy struct {
	UpdatedAt    time.Time      `json:"updated_at"`
	BaseCurrency string         `json:"base_currency"`
	Targets      []PolicyTarget `json:"targets"`
	ID           int64          `json:"id"`
}

// TargetFor returns the target configured for a sleeve
func (p *Policy) TargetFor(class AssetClass) (PolicyTarget, bool) {
	if p == nil {
		return PolicyTarget{}, false
	}
	for _, t := range p.Targets {
		if t.AssetClass == class {
			return t, true
		}
	}
	return PolicyTarget{}, false
}

// PositionSnapshot is the immutable valuation of one position at capture time
type PositionSnapshot struct {
	Timestamp    time.Time `json:"ts"`
	RunID        string    `json:"run_id"`
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	InstrumentID int64     `json:"instrument_id"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	Value        float64   `json:"value"`
}

// PortfolioSnapshot is the immutable aggregate written once per capture run
type PortfolioSnapshot struct {
	Timestamp         time.Time          `json:"ts"`
	BySleeve          map[string]float64 `json:"by_sleeve"`
	RunID             string             `json:"run_id"`
	ReportingCurrency string             `json:"reporting_currency"`
	ID                int64              `json:"id"`
	TotalValue        float64            `json:"total_value"`
}
