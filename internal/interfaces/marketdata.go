package interfaces

import (
	"context"

	"github.com/ternarybob/nuntius/internal/models"
)

// MarketDataProvider is one upstream vendor. The service consults providers
// in configured priority order and short-circuits on first success; each
// provider carries its own rate budget and circuit breaker.
type MarketDataProvider interface {
	Name() string

	// BatchQuotes fetches quotes for up to the provider's batch limit of
	// tickers in one call. Providers without a bulk endpoint fan out
	// internally and may return partial results.
	BatchQuotes(ctx context.Context, tickers []string) (map[string]*models.PriceQuote, error)

	// FloatShares returns shares outstanding available for trading.
	FloatShares(ctx context.Context, ticker string) (float64, error)

	// RVOL returns today's volume over the trailing average.
	RVOL(ctx context.Context, ticker string) (float64, error)

	// VWAP returns the session volume-weighted average price.
	VWAP(ctx context.Context, ticker string) (float64, error)

	// EarningsSurprise returns the most recent quarter's EPS surprise as a
	// signed fraction of the estimate. Providers without an earnings
	// endpoint return a DataGapError.
	EarningsSurprise(ctx context.Context, ticker string) (float64, error)
}

// MarketDataService is the cached, provider-chained facade the pipeline
// uses. Every result is served from a per-field TTL cache when fresh.
type MarketDataService interface {
	// BatchPrices resolves quotes for all tickers within the batch
	// deadline, fanning out concurrently on cache misses. Missing tickers
	// are absent from the map, never zero-valued.
	BatchPrices(ctx context.Context, tickers []string) map[string]*models.PriceQuote

	GetRVOL(ctx context.Context, ticker string) (float64, error)
	GetFloat(ctx context.Context, ticker string) (float64, error)
	GetVWAP(ctx context.Context, ticker string) (float64, error)
	GetEarningsSurprise(ctx context.Context, ticker string) (float64, error)

	// ProviderStates reports each provider's circuit state for health
	// reporting, keyed by provider name.
	ProviderStates() map[string]string
}

// EnrichmentService fans out float/RVOL/VWAP lookups for a cycle's unique
// tickers across three bounded pools.
type EnrichmentService interface {
	Enrich(ctx context.Context, tickers []string, quotes map[string]*models.PriceQuote) map[string]*models.EnrichmentRecord
}
