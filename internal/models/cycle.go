package models

import (
	"sort"
	"time"
)

// ItemState tracks an item through the per-cycle pipeline.
type ItemState string

const (
	StateFetched        ItemState = "fetched"
	StateDeduped        ItemState = "deduped"
	StateSeenChecked    ItemState = "seen_checked"
	StateTickerResolved ItemState = "ticker_resolved"
	StateClassified     ItemState = "classified"
	StateSentimented    ItemState = "sentimented"
	StateEnriched       ItemState = "enriched"
	StateGated          ItemState = "gated"
	StateFormatted      ItemState = "formatted"
	StatePosted         ItemState = "posted"
	StateMarked         ItemState = "marked"   // terminal, success
	StateRejected       ItemState = "rejected" // terminal, filtered by a gate
	StateDropped        ItemState = "dropped"  // terminal, uncaught item error
)

// Skip reasons attributed per item. Intake and dedup reasons come first,
// then the filter gates in their evaluation order.
const (
	SkipStale       = "stale"
	SkipSeen        = "seen"
	SkipDuplicate   = "duplicate"
	SkipInvalidItem = "invalid_item"

	SkipNoTicker      = "no_ticker"
	SkipCrypto        = "crypto"
	SkipLowRelevance  = "low_relevance"
	SkipPriceCeiling  = "price_ceiling"
	SkipPriceFloor    = "price_floor"
	SkipDerivative    = "derivative"
	SkipSource        = "source_skipped"
	SkipLowScore      = "low_score"
	SkipLowSentiment  = "low_sentiment"
	SkipCategory      = "category_blocked"
	SkipOTC           = "otc"
	SkipLowVolume     = "low_volume"
)

// CycleStats carries the per-cycle counters. Reset at cycle start, logged
// and appended to the event log at cycle end.
type CycleStats struct {
	CycleID   string    `json:"cycle_id"`
	Session   string    `json:"session"`
	StartedAt time.Time `json:"started_at"`

	Fetched      int `json:"fetched"`
	Deduped      int `json:"deduped"` // survivors after duplicate collapse
	Classified   int `json:"classified"`
	Enriched     int `json:"enriched"`
	AlertsSent   int `json:"alerts_sent"`
	AlertsFailed int `json:"alerts_failed"`
	Deferred     int `json:"deferred"` // pushed to next cycle by the per-cycle cap
	DroppedError int `json:"dropped_error"`

	Skipped map[string]int `json:"skipped,omitempty"` // reason -> count

	DurationMS int64 `json:"cycle_duration_ms"`
}

// NewCycleStats starts a zeroed counter set for one cycle.
func NewCycleStats(cycleID, session string) *CycleStats {
	return &CycleStats{
		CycleID:   cycleID,
		Session:   session,
		StartedAt: time.Now().UTC(),
		Skipped:   make(map[string]int),
	}
}

// Skip attributes one item to a skip reason.
func (s *CycleStats) Skip(reason string) {
	if s.Skipped == nil {
		s.Skipped = make(map[string]int)
	}
	s.Skipped[reason]++
}

// SkippedTotal sums the per-reason skip counters.
func (s *CycleStats) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

// Balanced verifies the accounting identity: every fetched item ends as a
// sent alert, a failed alert, a skip, a deferral or a dropped error.
func (s *CycleStats) Balanced() bool {
	return s.Fetched == s.AlertsSent+s.AlertsFailed+s.SkippedTotal()+s.Deferred+s.DroppedError
}

// Empty reports whether the cycle produced no alert and saw no fresh items.
func (s *CycleStats) Empty() bool {
	return s.AlertsSent == 0 && s.Fetched == s.Skipped[SkipSeen]+s.Skipped[SkipDuplicate]+s.Skipped[SkipStale]
}

// SkipReasons returns the reasons seen this cycle in stable order.
func (s *CycleStats) SkipReasons() []string {
	reasons := make([]string, 0, len(s.Skipped))
	for r := range s.Skipped {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}

// Finish stamps the duration.
func (s *CycleStats) Finish() {
	s.DurationMS = time.Since(s.StartedAt).Milliseconds()
}
