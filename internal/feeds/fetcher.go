package feeds

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Fetcher fans out over all configured sources with bounded concurrency
// and applies the intake freshness filter.
type Fetcher struct {
	sources     []interfaces.FeedSource
	concurrency int
	timeout     time.Duration
	maxAge      func(source string) time.Duration
	logger      arbor.ILogger
}

var _ interfaces.FetcherService = (*Fetcher)(nil)

// NewFetcher wires the registered sources to the intake settings.
func NewFetcher(cfg *common.Config, sources []interfaces.FeedSource, logger arbor.ILogger) *Fetcher {
	concurrency := cfg.Intake.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Fetcher{
		sources:     sources,
		concurrency: concurrency,
		timeout:     cfg.Intake.FetchTimeout(),
		maxAge:      cfg.Intake.MaxAgeFor,
		logger:      logger,
	}
}

// Sources returns the registered sources in configuration order.
func (f *Fetcher) Sources() []interfaces.FeedSource {
	return f.sources
}

// FetchAll runs every source concurrently, collects fresh valid items and
// counts intake rejections. Source failures are logged and contribute
// nothing. The returned slice is sorted for deterministic downstream
// processing regardless of arrival order.
func (f *Fetcher) FetchAll(ctx context.Context, stats *models.CycleStats) []*models.NewsItem {
	var (
		mu        sync.Mutex
		collected []*models.NewsItem
		wg        sync.WaitGroup
	)
	semaphore := make(chan struct{}, f.concurrency)

	for _, source := range f.sources {
		source := source
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()

			started := time.Now()
			items, err := source.Fetch(fetchCtx)
			if err != nil {
				f.logger.Warn().Err(err).
					Str("source", source.Name()).
					Int64("elapsed_ms", time.Since(started).Milliseconds()).
					Msg("Feed fetch failed")
				return
			}

			f.logger.Debug().
				Str("source", source.Name()).
				Int("items", len(items)).
				Int64("elapsed_ms", time.Since(started).Milliseconds()).
				Msg("Feed fetched")

			mu.Lock()
			collected = append(collected, items...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	now := time.Now().UTC()
	fresh := make([]*models.NewsItem, 0, len(collected))
	for _, item := range collected {
		stats.Fetched++

		if !item.Valid() {
			stats.Skip(models.SkipInvalidItem)
			continue
		}
		// Feeds occasionally omit timestamps; first sight counts as
		// publication and the seen-store prevents replays.
		if item.PublishedAt.IsZero() {
			item.PublishedAt = item.FetchedAt
		}
		if item.Age(now) > f.maxAge(item.Source) {
			stats.Skip(models.SkipStale)
			continue
		}
		fresh = append(fresh, item)
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		if !fresh[i].PublishedAt.Equal(fresh[j].PublishedAt) {
			return fresh[i].PublishedAt.After(fresh[j].PublishedAt)
		}
		return fresh[i].Fingerprint() < fresh[j].Fingerprint()
	})

	return fresh
}
