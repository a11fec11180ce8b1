package interfaces

import (
	"context"

	"github.com/ternarybob/nuntius/internal/models"
)

// FeedSource is one configured feed. Implementations exist per wire format
// (RSS/Atom, vendor JSON, SEC); the orchestrator only sees this contract.
type FeedSource interface {
	// Fetch retrieves and normalizes the source's current items. A failed
	// fetch returns an empty slice plus the error; it never panics and
	// never blocks past the context deadline.
	Fetch(ctx context.Context) ([]*models.NewsItem, error)

	// Name returns the configured source identifier, e.g. "prnewswire".
	Name() string

	// Weight returns the source's dedup priority. When the same event
	// arrives from two feeds the higher weight wins.
	Weight() int
}

// FetcherService fans out over all registered sources with bounded
// concurrency and collects their items.
type FetcherService interface {
	// FetchAll runs every source concurrently and returns the combined
	// fresh items. Per-source failures are logged and skipped; the slice
	// holds whatever succeeded. Stale items are discarded and counted.
	FetchAll(ctx context.Context, stats *models.CycleStats) []*models.NewsItem

	// Sources returns the registered sources in configuration order.
	Sources() []FeedSource
}
