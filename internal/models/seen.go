package models

import (
	"time"
)

// SeenRecord marks a fingerprint as alerted. Inserted only after a 2xx
// webhook response, never at intake. Evicted once older than the TTL.
type SeenRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	Weight      int       `json:"weight"` // source weight, breaks ties on multi-feed replays
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Expired reports whether the record has aged past ttl at the given time.
func (r *SeenRecord) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.FirstSeenAt) > ttl
}

// FeedState persists conditional-GET validators per source so restarts
// keep honoring ETag and Last-Modified.
type FeedState struct {
	Source       string    `json:"source"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	LastFetchAt  time.Time `json:"last_fetch_at"`
	LastStatus   int       `json:"last_status"`
}

// DeferredItem is a scored item pushed past the per-cycle alert cap. The
// next cycle re-queues it ahead of gating.
type DeferredItem struct {
	Fingerprint string      `json:"fingerprint"`
	Scored      *ScoredItem `json:"scored"`
	DeferredAt  time.Time   `json:"deferred_at"`
	FromCycle   string      `json:"from_cycle"`
}

// CostDay accumulates LLM spend for one UTC day. A scheduler task resets
// it at UTC midnight.
type CostDay struct {
	Day           string    `json:"day"` // 2006-01-02, UTC
	SpentUSD      float64   `json:"spent_usd"`
	Calls         int       `json:"calls"`
	CacheHits     int       `json:"cache_hits"`
	TiersDisabled []string  `json:"tiers_disabled,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AnalysisCacheEntry stores one LLM analysis keyed by document fingerprint.
type AnalysisCacheEntry struct {
	DocFingerprint string    `json:"doc_fingerprint"`
	Analysis       *Analysis `json:"analysis"`
	Model          string    `json:"model"`
	CachedAt       time.Time `json:"cached_at"`
}

// Expired reports whether the cached analysis has outlived ttl.
func (e *AnalysisCacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) > ttl
}
