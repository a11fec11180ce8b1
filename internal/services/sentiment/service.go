// Package sentiment blends independent per-source signals into one
// aggregate read per item. Every source is optional; weights renormalize
// over whichever sources actually produced a signal, and an item with no
// sources at all gets a nil aggregate rather than a fake neutral.
package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// mlTextLimit bounds what goes to the scoring model; headline plus lede
// is what moves a stock, not page four.
const mlTextLimit = 512

// Service implements the sentiment aggregator.
type Service struct {
	weights  common.SentimentWeights
	ml       *MLClient
	external *ExternalScorer
	market   *MarketScorer
	timeout  time.Duration
	logger   arbor.ILogger
}

var _ interfaces.SentimentService = (*Service)(nil)

// NewService wires the configured sources. md and vendor may be nil; the
// blend simply loses those sources.
func NewService(cfg *common.Config, md interfaces.MarketDataService, clock *common.MarketClock, vendor TickerSentimentSource, logger arbor.ILogger) *Service {
	timeout := time.Duration(cfg.Sentiment.SourceTimeoutS * float64(time.Second))
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Service{
		weights:  cfg.Sentiment.Weights,
		ml:       NewMLClient(cfg, logger),
		external: NewExternalScorer(vendor, time.Duration(cfg.Sentiment.ExternalTTLHrs)*time.Hour, logger),
		market:   NewMarketScorer(md, clock, logger),
		timeout:  timeout,
		logger:   logger,
	}
}

// Analyze gathers every configured source for one item and returns the
// renormalized blend.
func (s *Service) Analyze(ctx context.Context, item *models.NewsItem, ticker string) *models.Sentiment {
	result := s.gather(ctx, item, ticker)

	if s.ml != nil {
		signals := s.ml.ScoreBatch(ctx, []string{itemText(item)})
		if len(signals) == 1 {
			result.ML = signals[0]
		}
	}

	s.blend(result)
	return result
}

// AnalyzeBatch resolves sentiment for the cycle's survivors in place,
// sharing one ML batch across all of them.
func (s *Service) AnalyzeBatch(ctx context.Context, items []*models.ScoredItem) {
	if len(items) == 0 {
		return
	}

	for _, scored := range items {
		scored.Sentiment = s.gather(ctx, scored.Item, scored.PrimaryTicker)
	}

	if s.ml != nil {
		texts := make([]string, len(items))
		for i, scored := range items {
			texts[i] = itemText(scored.Item)
		}
		signals := s.ml.ScoreBatch(ctx, texts)
		for i, scored := range items {
			scored.Sentiment.ML = signals[i]
		}
	}

	for _, scored := range items {
		s.blend(scored.Sentiment)
	}
}

// Purge drops expired external-cache entries.
func (s *Service) Purge() int {
	return s.external.Purge()
}

// gather runs the non-ML sources concurrently, each under its own
// timeout. The lexicon is synchronous; it cannot block.
func (s *Service) gather(ctx context.Context, item *models.NewsItem, ticker string) *models.Sentiment {
	result := &models.Sentiment{Local: LexiconScore(item)}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		common.SafeGo(s.logger, name, func() {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			fn(srcCtx)
		})
	}

	run("sentiment.external", func(srcCtx context.Context) {
		result.External = s.external.Score(srcCtx, item, ticker)
	})
	run("sentiment.price_action", func(srcCtx context.Context) {
		result.Premarket = s.market.PriceAction(srcCtx, item, ticker)
	})
	run("sentiment.earnings", func(srcCtx context.Context) {
		result.Earnings = s.market.EarningsSurprise(srcCtx, ticker)
	})
	wg.Wait()

	return result
}

// blend fills the aggregate: a weighted mean over present sources with
// the weights renormalized to the present set.
func (s *Service) blend(result *models.Sentiment) {
	parts := []struct {
		signal *models.SentimentSignal
		weight float64
	}{
		{result.Earnings, s.weights.Earnings},
		{result.ML, s.weights.ML},
		{result.Local, s.weights.Local},
		{result.External, s.weights.External},
		{result.Premarket, s.weights.Premarket},
	}

	var totalWeight, score, confidence float64
	for _, part := range parts {
		if part.signal == nil || part.weight <= 0 {
			continue
		}
		totalWeight += part.weight
		score += part.weight * part.signal.Score
		confidence += part.weight * part.signal.Confidence
	}

	if totalWeight == 0 {
		result.Aggregate = nil
		return
	}
	result.Aggregate = &models.SentimentSignal{
		Score:      score / totalWeight,
		Confidence: confidence / totalWeight,
	}
}

func itemText(item *models.NewsItem) string {
	text := item.Title
	if item.Summary != "" {
		text += ". " + item.Summary
	}
	if len(text) > mlTextLimit {
		text = text[:mlTextLimit]
	}
	return text
}
