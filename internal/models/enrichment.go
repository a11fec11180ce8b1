package models

import (
	"time"
)

// EnrichmentRecord holds the market-data signals gathered for one ticker
// within one cycle. Fields a provider could not supply stay nil; consumers
// treat nil as neutral, never as zero.
type EnrichmentRecord struct {
	Ticker string `json:"ticker"`

	LastPrice   *float64 `json:"last_price,omitempty"`
	ChangePct   *float64 `json:"change_pct,omitempty"`
	AvgVolume   *float64 `json:"avg_volume,omitempty"`
	RVOL        *float64 `json:"rvol_multiplier,omitempty"`
	FloatShares *float64 `json:"float_shares,omitempty"`
	VWAP        *float64 `json:"vwap,omitempty"`

	AsOf        time.Time `json:"as_of"`
	SourcesUsed []string  `json:"sources_used,omitempty"` // provider names in consult order
}

// HasPrice reports whether a positive last price is present.
func (e *EnrichmentRecord) HasPrice() bool {
	return e != nil && e.LastPrice != nil && *e.LastPrice > 0
}

// Price returns the last price or 0 with ok=false.
func (e *EnrichmentRecord) Price() (float64, bool) {
	if !e.HasPrice() {
		return 0, false
	}
	return *e.LastPrice, true
}

// RVOLOrNeutral returns the relative-volume multiplier, or 1.0 when the
// field is missing.
func (e *EnrichmentRecord) RVOLOrNeutral() float64 {
	if e == nil || e.RVOL == nil {
		return 1.0
	}
	return *e.RVOL
}

// PriceQuote is the batch price result for one ticker.
type PriceQuote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Volume    float64   `json:"volume,omitempty"`
	AvgVolume float64   `json:"avg_volume,omitempty"`
	AsOf      time.Time `json:"as_of"`
	Provider  string    `json:"provider"`
}

// Float64Ptr returns a pointer to v. Enrichment fields are pointer-typed so
// absent data stays distinguishable from zero.
func Float64Ptr(v float64) *float64 {
	return &v
}
