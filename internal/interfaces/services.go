package interfaces

import (
	"context"

	"github.com/ternarybob/nuntius/internal/models"
)

// DedupService collapses the cycle's fetched items to one per underlying
// event: exact fingerprint groups first, then fuzzy title matching within
// ticker buckets. Deterministic for identical input.
type DedupService interface {
	// Dedup returns the surviving subset and counts each collapsed item
	// on the cycle stats.
	Dedup(items []*models.NewsItem, stats *models.CycleStats) []*models.NewsItem
}

// ResolverService attributes an item to tickers with relevance scores.
type ResolverService interface {
	// Resolve returns the primary tickers (capped) and the full relevance
	// map. An empty primary slice means the item has no valid ticker.
	Resolve(item *models.NewsItem) (primaries []string, relevance map[string]int)
}

// ClassifierService scores an item against the catalyst taxonomy.
type ClassifierService interface {
	// Classify runs the fast keyword pass: at most one hit per category,
	// weighted by the dynamic weight table, summed and clamped to [0, 10].
	Classify(item *models.NewsItem, weights *models.DynamicWeights) (score float64, hits map[string]float64)

	// ClassifyFull additionally folds in a sentiment aggregate; the
	// result shape matches Classify.
	ClassifyFull(item *models.NewsItem, weights *models.DynamicWeights, sentiment *models.Sentiment) (score float64, hits map[string]float64)

	// ReloadWeights re-reads the dynamic weight table, falling back to
	// the last good table on error. Called at cycle start.
	ReloadWeights() *models.DynamicWeights

	// TopCategory returns the highest-contributing category from a hit
	// map, or "".
	TopCategory(hits map[string]float64) string
}

// SentimentService blends the available per-source signals.
type SentimentService interface {
	// Analyze gathers every configured source within its timeout and
	// returns the renormalized blend. Aggregate is nil when no source
	// produced a signal.
	Analyze(ctx context.Context, item *models.NewsItem, ticker string) *models.Sentiment

	// AnalyzeBatch scores the cycle's survivors in one pass so the ML
	// endpoint sees a single batched request.
	AnalyzeBatch(ctx context.Context, items []*models.ScoredItem)
}

// LLMService analyzes SEC filing text through tier-routed, batched,
// cost-capped model calls.
type LLMService interface {
	// Analyze resolves an analysis per document, serving repeats from the
	// persistent cache. Documents whose tier is cost-disabled come back
	// with a nil entry.
	Analyze(ctx context.Context, docs []*models.SECDoc) map[string]*models.Analysis

	// SpentToday returns the UTC-day spend in USD.
	SpentToday() float64

	Close() error
}

// AlertFormatter renders a scored, enriched item into a webhook message.
type AlertFormatter interface {
	Format(scored *models.ScoredItem, enrichment *models.EnrichmentRecord) *models.Alert
}

// WebhookPoster delivers alerts with bounded retry and rate-limit honor.
type WebhookPoster interface {
	// Post attempts delivery, retrying 429 and 5xx responses up to the
	// configured budget. The result carries the final status and the
	// server-assigned message id on success.
	Post(ctx context.Context, alert *models.Alert) *models.PostResult

	// PostAdmin sends an operational notice to the admin webhook when one
	// is configured, e.g. the consecutive-empty-cycles warning.
	PostAdmin(ctx context.Context, text string) error
}

// EventWriter appends structured pipeline events to the JSONL event log
// consumed by outcome-tracking collaborators.
type EventWriter interface {
	WriteAlert(alert *models.Alert, result *models.PostResult) error
	WriteCycle(stats *models.CycleStats) error
	Close() error
}
