package pipeline

import (
	"math"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

// applyGates evaluates gates 4 through 12 for each candidate in their
// fixed order, rejecting at the first match. Gates 1-3 (no-ticker,
// crypto, relevance) already ran at resolution.
func (o *Orchestrator) applyGates(candidates []*models.ScoredItem, enrichment map[string]*models.EnrichmentRecord, stats *models.CycleStats, log arbor.ILogger) []*models.ScoredItem {
	kept := candidates[:0]
	for _, scored := range candidates {
		reason := o.gateReason(scored, enrichment[scored.PrimaryTicker])
		if reason != "" {
			stats.Skip(reason)
			log.Debug().
				Str("ticker", scored.PrimaryTicker).
				Str("reason", reason).
				Str("title", scored.Item.Title).
				Msg("Candidate gated")
			continue
		}
		kept = append(kept, scored)
	}
	return kept
}

// gateReason returns the first matching gate's skip reason, or "" when
// the candidate passes. Missing market data never rejects: an unknown
// price or volume passes its gate, per the partial-data rule.
func (o *Orchestrator) gateReason(scored *models.ScoredItem, enr *models.EnrichmentRecord) string {
	gates := o.cfg.Gates
	ticker := common.ParseTicker(scored.PrimaryTicker)
	price, hasPrice := enr.Price()

	if gates.PriceCeiling > 0 && hasPrice && price > gates.PriceCeiling {
		return models.SkipPriceCeiling
	}
	if hasPrice && price < gates.PriceFloor {
		return models.SkipPriceFloor
	}
	if gates.IgnoreInstruments && ticker.IsDerivative() {
		return models.SkipDerivative
	}
	if o.skipSource[scored.Item.Source] {
		return models.SkipSource
	}
	if scored.CatalystScore < gates.MinScore {
		return models.SkipLowScore
	}
	if gates.MinSentAbs > 0 {
		if aggregate, ok := scored.Sentiment.AggregateScore(); ok && math.Abs(aggregate) < gates.MinSentAbs {
			return models.SkipLowSentiment
		}
	}
	if !o.allowAll && !o.categories[scored.TopCategory] {
		return models.SkipCategory
	}
	if !gates.AllowOTC && ticker.IsOTC() {
		return models.SkipOTC
	}
	if gates.MinAvgVolume > 0 && enr != nil && enr.AvgVolume != nil && *enr.AvgVolume < float64(gates.MinAvgVolume) {
		return models.SkipLowVolume
	}
	return ""
}
