package domain

import "strings"

// AssetClass is a normalized sleeve name used for aggregation and policy targets
type AssetClass string

// Canonical sleeves
const (
	AssetClassEquity    AssetClass = "Equity"
	AssetClassBonds     AssetClass = "Bonds"
	AssetClassFund      AssetClass = "Fund"
	AssetClassCrypto    AssetClass = "Crypto"
	AssetClassCommodity AssetClass = "Commodity"
	AssetClassLending   AssetClass = "Lending"
	AssetClassCash      AssetClass = "Cash"
	AssetClassOther     AssetClass = "Other"
)

// CanonicalAssetClasses lists the closed set of known sleeves in display order
var CanonicalAssetClasses = []AssetClass{
	AssetClassEquity,
	AssetClassBonds,
	AssetClassFund,
	AssetClassCrypto,
	AssetClassCommodity,
	AssetClassLending,
	AssetClassCash,
	AssetClassOther,
}

// assetClassLabels maps loose or historical labels onto canonical sleeves.
// Exact matches win; otherwise the lower-cased trimmed label is tried.
var assetClassLabels = map[string]AssetClass{
	"Equity ETF": AssetClassEquity,
	"Stock":      AssetClassEquity,
	"Equity":     AssetClassEquity,
	"Bond":       AssetClassBonds,
	"Bonds":      AssetClassBonds,
	"Fund":       AssetClassFund,
	"Crypto":     AssetClassCrypto,
	"Commodity":  AssetClassCommodity,
	"Lending":    AssetClassLending,
	"Cash":       AssetClassCash,
	"Other":      AssetClassOther,

	"equity etf": AssetClassEquity,
	"stock":      AssetClassEquity,
	"equity":     AssetClassEquity,
	"bond":       AssetClassBonds,
	"bonds":      AssetClassBonds,
	"fund":       AssetClassFund,
	"crypto":     AssetClassCrypto,
	"commodity":  AssetClassCommodity,
	"lending":    AssetClassLending,
	"cash":       AssetClassCash,
	"other":      AssetClassOther,
}

// NormalizeAssetClass maps a free-form label onto its sleeve.
//
// Unknown labels pass through (trimmed) as their own sleeve so new asset
// classes show up without a code change. An empty label becomes Other.
func NormalizeAssetClass(label string) AssetClass {
	if class, ok := assetClassLabels[label]; ok {
		return class
	}

	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return AssetClassOther
	}

	if class, ok := assetClassLabels[strings.ToLower(trimmed)]; ok {
		return class
	}

	return AssetClass(trimmed)
}

// IsCanonical reports whether the class is one of the known sleeves
func (a AssetClass) IsCanonical() bool {
	for _, c := range CanonicalAssetClasses {
		if a == c {
			return true
		}
	}
	return false
}

// QuotedInReportingCurrency reports whether the market-data feed for this
// sleeve already quotes prices in the reporting currency, so no FX
// conversion applies.
func (a AssetClass) QuotedInReportingCurrency() bool {
	return a == AssetClassCrypto
}

// String implements fmt.Stringer
func (a AssetClass) String() string {
	return string(a)
}

// Freshness tells whether a value came from a live observation or a fallback estimate
type Freshness string

const (
	FreshnessLive     Freshness = "live"
	FreshnessFallback Freshness = "fallback"
)
