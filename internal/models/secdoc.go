package models

import (
	"time"
)

// AnalysisTier routes a filing to a model tier. Higher tiers cost more and
// are disabled first when the daily budget trips.
type AnalysisTier string

const (
	TierSimple   AnalysisTier = "SIMPLE"
	TierMedium   AnalysisTier = "MEDIUM"
	TierComplex  AnalysisTier = "COMPLEX"
	TierCritical AnalysisTier = "CRITICAL"
)

// SECDoc is a filing body queued for LLM analysis.
type SECDoc struct {
	DocID     string       `json:"doc_id"` // item fingerprint
	Accession string       `json:"accession"`
	FormType  string       `json:"form_type"` // 8-K, 10-Q, S-1, 424B5, ...
	ItemCodes []string     `json:"item_codes,omitempty"`
	CIK       string       `json:"cik,omitempty"`
	Company   string       `json:"company,omitempty"`
	Ticker    string       `json:"ticker,omitempty"`
	Body      string       `json:"body"`
	Tier      AnalysisTier `json:"tier"`
	QueuedAt  time.Time    `json:"queued_at"`
}

// Analysis is the structured result extracted from one filing.
type Analysis struct {
	DocID     string            `json:"doc_id"`
	Summary   string            `json:"summary"`
	Keywords  []string          `json:"keywords,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"` // e.g. offering_size, price_per_share
	Sentiment float64           `json:"sentiment"`         // -1..1
	Tier      AnalysisTier      `json:"tier"`
	Model     string            `json:"model"`
	CostUSD   float64           `json:"cost_usd"`
	FromCache bool              `json:"from_cache"`
}
