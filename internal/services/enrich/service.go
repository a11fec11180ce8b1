// Package enrich fans a cycle's unique tickers across three bounded lookup
// pools, one per market-data field. Pools run in parallel and share a soft
// deadline; a ticker whose lookup fails or times out keeps a nil field.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type fieldPool struct {
	name    string
	workers int
	fetch   func(ctx context.Context, ticker string) (float64, error)
	assign  func(rec *models.EnrichmentRecord, v float64)
}

type Service struct {
	md           interfaces.MarketDataService
	pools        []fieldPool
	perTicker    time.Duration
	softDeadline time.Duration
	logger       arbor.ILogger
}

var _ interfaces.EnrichmentService = (*Service)(nil)

func NewService(cfg *common.Config, md interfaces.MarketDataService, logger arbor.ILogger) *Service {
	s := &Service{
		md:           md,
		perTicker:    time.Duration(cfg.Enrichment.PerTickerTimeout) * time.Second,
		softDeadline: time.Duration(cfg.Enrichment.SoftDeadlineSec * float64(time.Second)),
		logger:       logger,
	}
	if s.perTicker <= 0 {
		s.perTicker = 30 * time.Second
	}
	if s.softDeadline <= 0 {
		s.softDeadline = 2 * time.Second
	}
	if md != nil {
		s.pools = []fieldPool{
			{
				name:    "float",
				workers: poolSize(cfg.Enrichment.FloatWorkers, 10),
				fetch:   md.GetFloat,
				assign: func(rec *models.EnrichmentRecord, v float64) {
					rec.FloatShares = models.Float64Ptr(v)
				},
			},
			{
				name:    "rvol",
				workers: poolSize(cfg.Enrichment.RVOLWorkers, 15),
				fetch:   md.GetRVOL,
				assign: func(rec *models.EnrichmentRecord, v float64) {
					rec.RVOL = models.Float64Ptr(v)
				},
			},
			{
				name:    "vwap",
				workers: poolSize(cfg.Enrichment.VWAPWorkers, 15),
				fetch:   md.GetVWAP,
				assign: func(rec *models.EnrichmentRecord, v float64) {
					rec.VWAP = models.Float64Ptr(v)
				},
			},
		}
	}
	return s
}

func poolSize(configured, fallback int) int {
	if configured <= 0 {
		return fallback
	}
	return configured
}

// Enrich gathers float, relative volume and VWAP for each ticker. Quotes from
// the batch price pass seed the price fields so the pools never re-fetch them.
// All pools finish or hit the soft deadline before the map is returned, so the
// caller reads it without synchronization.
func (s *Service) Enrich(ctx context.Context, tickers []string, quotes map[string]*models.PriceQuote) map[string]*models.EnrichmentRecord {
	started := time.Now()
	unique := uniqueTickers(tickers)

	records := make(map[string]*models.EnrichmentRecord, len(unique))
	for _, ticker := range unique {
		rec := &models.EnrichmentRecord{Ticker: ticker, AsOf: started.UTC()}
		if quote, ok := quotes[ticker]; ok && quote != nil {
			rec.LastPrice = models.Float64Ptr(quote.Price)
			rec.ChangePct = models.Float64Ptr(quote.ChangePct)
			if quote.AvgVolume > 0 {
				rec.AvgVolume = models.Float64Ptr(quote.AvgVolume)
			}
			if quote.Provider != "" {
				rec.SourcesUsed = append(rec.SourcesUsed, quote.Provider)
			}
		}
		records[ticker] = rec
	}

	if s.md == nil || len(unique) == 0 {
		return records
	}

	poolCtx, cancel := context.WithTimeout(ctx, s.softDeadline)
	defer cancel()

	var wg sync.WaitGroup
	for i := range s.pools {
		pool := s.pools[i]
		wg.Add(1)
		common.SafeGo(s.logger, "enrich-"+pool.name, func() {
			defer wg.Done()
			s.runPool(poolCtx, pool, unique, records)
		})
	}
	wg.Wait()

	if poolCtx.Err() != nil {
		s.logger.Warn().
			Int("tickers", len(unique)).
			Int64("elapsed_ms", time.Since(started).Milliseconds()).
			Msg("Enrichment soft deadline reached, returning partial records")
	}
	return records
}

// runPool walks the ticker list through one bounded worker pool. Each pool
// owns exactly one record field, so pools write concurrently without locks.
func (s *Service) runPool(ctx context.Context, pool fieldPool, tickers []string, records map[string]*models.EnrichmentRecord) {
	sem := make(chan struct{}, pool.workers)
	var wg sync.WaitGroup

	for _, ticker := range tickers {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		ticker := ticker
		common.SafeGo(s.logger, "enrich-"+pool.name+"-worker", func() {
			defer wg.Done()
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, s.perTicker)
			defer cancel()

			v, err := pool.fetch(callCtx, ticker)
			if err != nil {
				if !common.IsDataGap(err) && ctx.Err() == nil {
					s.logger.Debug().
						Err(err).
						Str("ticker", ticker).
						Str("field", pool.name).
						Msg("Enrichment lookup failed")
				}
				return
			}
			pool.assign(records[ticker], v)
		})
	}
	wg.Wait()
}

func uniqueTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if ticker == "" {
			continue
		}
		if _, ok := seen[ticker]; ok {
			continue
		}
		seen[ticker] = struct{}{}
		out = append(out, ticker)
	}
	return out
}
