package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/models"
)

// TickerSentimentSource supplies vendor ticker-level sentiment when the
// article itself carries none. Implemented by the finnhub provider.
type TickerSentimentSource interface {
	NewsSentiment(ctx context.Context, ticker string) (float64, error)
}

// externalConfidence applies to vendor-carried values; vendors publish a
// bare score with no model detail to judge it by.
const externalConfidence = 0.6

type cachedSignal struct {
	signal   *models.SentimentSignal
	cachedAt time.Time
}

// ExternalScorer resolves vendor sentiment: the article's own carried
// value first, then the ticker-level vendor endpoint. Results are cached
// per (source_id, url) so repeat lookups inside the TTL cost nothing.
type ExternalScorer struct {
	vendor TickerSentimentSource
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSignal

	logger arbor.ILogger
}

// NewExternalScorer builds the vendor scorer. vendor may be nil, leaving
// only article-carried values.
func NewExternalScorer(vendor TickerSentimentSource, ttl time.Duration, logger arbor.ILogger) *ExternalScorer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExternalScorer{
		vendor: vendor,
		ttl:    ttl,
		cache:  make(map[string]cachedSignal),
		logger: logger,
	}
}

// Score resolves the external signal for an item, or nil when no vendor
// has a view.
func (s *ExternalScorer) Score(ctx context.Context, item *models.NewsItem, ticker string) *models.SentimentSignal {
	key := item.SourceID + "|" + item.CanonicalURL

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < s.ttl {
		return entry.signal
	}

	signal := s.resolve(ctx, item, ticker)

	s.mu.Lock()
	s.cache[key] = cachedSignal{signal: signal, cachedAt: time.Now()}
	s.mu.Unlock()
	return signal
}

func (s *ExternalScorer) resolve(ctx context.Context, item *models.NewsItem, ticker string) *models.SentimentSignal {
	if value, ok := item.VendorSentiment(); ok {
		return &models.SentimentSignal{Score: clampSigned(value), Confidence: externalConfidence}
	}

	if s.vendor == nil || ticker == "" {
		return nil
	}
	value, err := s.vendor.NewsSentiment(ctx, ticker)
	if err != nil {
		s.logger.Debug().Err(err).Str("ticker", ticker).Msg("Vendor sentiment unavailable")
		return nil
	}
	return &models.SentimentSignal{Score: clampSigned(value), Confidence: externalConfidence}
}

// Purge drops expired cache entries. Called by the hourly maintenance
// task.
func (s *ExternalScorer) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.cache {
		if time.Since(entry.cachedAt) >= s.ttl {
			delete(s.cache, key)
			removed++
		}
	}
	return removed
}

func clampSigned(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
