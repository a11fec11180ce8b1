package models

import (
	"time"
)

// MaxCatalystScore caps the keyword scoring model.
const MaxCatalystScore = 10.0

// SentimentSignal is one source's view of an item: a score in [-1, 1]
// and a confidence in [0, 1]. Absent sources are nil pointers, never zeros.
type SentimentSignal struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Sentiment collects the per-source signals plus the renormalized blend.
// Aggregate is nil when no source produced a signal.
type Sentiment struct {
	Local     *SentimentSignal `json:"local,omitempty"`     // lexicon scorer
	ML        *SentimentSignal `json:"ml,omitempty"`        // batched model endpoint
	External  *SentimentSignal `json:"external,omitempty"`  // vendor-provided
	Earnings  *SentimentSignal `json:"earnings,omitempty"`  // EPS surprise direction
	Premarket *SentimentSignal `json:"premarket,omitempty"` // session price action
	Aggregate *SentimentSignal `json:"aggregate,omitempty"`
}

// HasAggregate reports whether any source contributed to the blend.
func (s *Sentiment) HasAggregate() bool {
	return s != nil && s.Aggregate != nil
}

// AggregateScore returns the blended score, or 0 with ok=false when no
// source was available.
func (s *Sentiment) AggregateScore() (float64, bool) {
	if !s.HasAggregate() {
		return 0, false
	}
	return s.Aggregate.Score, true
}

// DynamicWeights maps catalyst category to its scoring weight. Loaded from
// an external file at cycle start; missing categories fall back to the
// configured baseline.
type DynamicWeights struct {
	Weights  map[string]float64 `json:"weights"`
	Baseline float64            `json:"baseline"`
	LoadedAt time.Time          `json:"loaded_at"`
}

// Weight returns the weight for a category, or the baseline when the
// category is absent from the table.
func (w *DynamicWeights) Weight(category string) float64 {
	if w == nil || w.Weights == nil {
		return 0.50
	}
	if v, ok := w.Weights[category]; ok {
		return v
	}
	return w.Baseline
}

// ScoredItem is a NewsItem after ticker resolution, classification and
// sentiment aggregation.
type ScoredItem struct {
	Item *NewsItem `json:"item"`

	// Ticker resolution
	PrimaryTicker    string         `json:"primary_ticker"`
	SecondaryTickers []string       `json:"secondary_tickers,omitempty"`
	RelevanceScores  map[string]int `json:"relevance_scores,omitempty"` // ticker -> 0..100

	// Classification
	KeywordHits   map[string]float64 `json:"keyword_hits,omitempty"` // category -> weight contribution
	CatalystScore float64            `json:"catalyst_score"`         // 0..10
	TopCategory   string             `json:"top_category,omitempty"`

	// Sentiment
	Sentiment *Sentiment `json:"sentiment,omitempty"`

	// SEC analysis, present only for filing sources
	Analysis *Analysis `json:"analysis,omitempty"`

	ClassifiedAt time.Time `json:"classified_at"`
}

// AllTickers returns the primary followed by the secondaries.
func (s *ScoredItem) AllTickers() []string {
	if s.PrimaryTicker == "" {
		return nil
	}
	out := make([]string, 0, 1+len(s.SecondaryTickers))
	out = append(out, s.PrimaryTicker)
	out = append(out, s.SecondaryTickers...)
	return out
}

// ClampScore bounds a raw keyword sum to the valid catalyst range.
func ClampScore(raw float64) float64 {
	if raw < 0 {
		return 0
	}
	if raw > MaxCatalystScore {
		return MaxCatalystScore
	}
	return raw
}
