// Package llm analyzes SEC filing text through tier-routed, batched and
// cost-capped model calls. Filings route to one of three model classes by
// item code and length, batches share one prompt per class, results persist
// in the analysis cache so a refiled document costs nothing, and a daily
// spend accumulator progressively disables the expensive classes.
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type Service struct {
	provider textProvider
	models   modelTable
	cache    interfaces.AnalysisCache
	cost     *costTracker
	batch    *batcher
	cacheTTL time.Duration
	logger   arbor.ILogger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ interfaces.LLMService = (*Service)(nil)

func NewService(cfg *common.Config, cache interfaces.AnalysisCache, state interfaces.StateStore, logger arbor.ILogger) (*Service, error) {
	provider, table, err := newProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		logger.Warn().Msg("No LLM API key configured, filing analysis disabled")
	} else {
		logger.Info().
			Str("provider", provider.Name()).
			Str("simple_model", table.simple).
			Str("medium_model", table.medium).
			Str("top_model", table.top).
			Msg("LLM provider initialized")
	}
	return newService(cfg.LLM, provider, table, cache, state, logger), nil
}

func newService(cfg common.LLMConfig, provider textProvider, table modelTable, cache interfaces.AnalysisCache, state interfaces.StateStore, logger arbor.ILogger) *Service {
	cacheTTL := time.Duration(cfg.CacheTTLHrs) * time.Hour
	if cacheTTL <= 0 {
		cacheTTL = 72 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		provider: provider,
		models:   table,
		cache:    cache,
		cost:     newCostTracker(cfg, state, logger),
		cacheTTL: cacheTTL,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	flush := time.Duration(cfg.BatchTimeoutS * float64(time.Second))
	s.batch = newBatcher(cfg.BatchSize, flush, s.processBatch)
	return s
}

// Analyze resolves an analysis per document. Cache hits return immediately;
// the rest are enqueued for batching and awaited until ctx expires. Every
// given doc id gets a map entry, nil when no analysis was produced.
func (s *Service) Analyze(ctx context.Context, docs []*models.SECDoc) map[string]*models.Analysis {
	out := make(map[string]*models.Analysis, len(docs))
	var waiting []*pending

	for _, doc := range docs {
		if doc == nil || doc.DocID == "" {
			continue
		}
		if _, dup := out[doc.DocID]; dup {
			continue
		}
		out[doc.DocID] = nil

		if cached := s.cacheLookup(doc.DocID); cached != nil {
			s.cost.CacheHit()
			out[doc.DocID] = cached
			continue
		}
		if s.provider == nil {
			continue
		}

		tier := RouteTier(doc)
		if !s.cost.TierAllowed(tier) {
			s.logger.Debug().
				Str("doc_id", doc.DocID).
				Str("tier", string(tier)).
				Msg("Analysis tier disabled by daily spend, skipping document")
			continue
		}

		routed := *doc
		routed.Tier = tier
		p := &pending{doc: &routed, result: make(chan *models.Analysis, 1)}
		if !s.batch.enqueue(ctx, p) {
			s.logger.Warn().Str("doc_id", doc.DocID).Msg("Analysis queue full, dropping document")
			continue
		}
		waiting = append(waiting, p)
	}

	// Results abandoned at the deadline still land in the cache when their
	// batch completes, so the next cycle gets them for free.
	for _, p := range waiting {
		select {
		case a := <-p.result:
			if a != nil {
				out[p.doc.DocID] = a
			}
		case <-ctx.Done():
			return out
		}
	}
	return out
}

func (s *Service) cacheLookup(docID string) *models.Analysis {
	if s.cache == nil {
		return nil
	}
	cached, ok := s.cache.Get(docID, s.cacheTTL)
	if !ok || cached == nil {
		return nil
	}
	hit := *cached
	hit.FromCache = true
	return &hit
}

// processBatch runs on the drainer goroutine. Documents are grouped by
// model class so each provider call carries one model and one prompt.
func (s *Service) processBatch(batch []*pending) {
	if s.provider == nil {
		for _, p := range batch {
			p.result <- nil
		}
		return
	}

	groups := make(map[string][]*pending)
	for _, p := range batch {
		class := modelClass(p.doc.Tier)
		groups[class] = append(groups[class], p)
	}
	for _, class := range []string{"simple", "medium", "top"} {
		if group := groups[class]; len(group) > 0 {
			s.processGroup(class, group)
		}
	}
}

func (s *Service) processGroup(class string, group []*pending) {
	docs := make([]*models.SECDoc, len(group))
	for i, p := range group {
		docs[i] = p.doc
	}
	model := s.models.forClass(class)
	prompt := buildPrompt(docs)

	response, err := s.provider.Generate(s.ctx, model, systemInstruction, prompt)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", model).
			Int("docs", len(docs)).
			Msg("Filing analysis call failed")
		for _, p := range group {
			p.result <- nil
		}
		return
	}

	cost := estimateCost(class, len(systemInstruction)+len(prompt), len(docs))
	s.cost.Add(cost)

	parsed, err := parseAnalyses(response)
	if err != nil {
		s.logger.Warn().Err(err).Str("model", model).Msg("Could not parse analysis response")
		for _, p := range group {
			p.result <- nil
		}
		return
	}

	perDoc := cost / float64(len(docs))
	for _, p := range group {
		a := parsed[p.doc.DocID]
		if a == nil {
			s.logger.Warn().
				Str("doc_id", p.doc.DocID).
				Str("model", model).
				Msg("Model response skipped a document")
			p.result <- nil
			continue
		}
		a.Tier = p.doc.Tier
		a.Model = model
		a.CostUSD = perDoc
		s.cachePut(p.doc.DocID, a, model)
		p.result <- a
	}
}

func (s *Service) cachePut(docID string, a *models.Analysis, model string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Put(&models.AnalysisCacheEntry{
		DocFingerprint: docID,
		Analysis:       a,
		Model:          model,
		CachedAt:       time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("doc_id", docID).Msg("Could not cache analysis")
	}
}

// SpentToday returns the UTC-day spend in USD.
func (s *Service) SpentToday() float64 {
	return s.cost.Spent()
}

// DisabledTiers lists the model classes the daily thresholds have shut off.
func (s *Service) DisabledTiers() []string {
	return s.cost.DisabledTiers()
}

// ResetDailyCost rolls the spend accumulator to the current UTC day,
// re-enabling every tier. The scheduler calls it at UTC midnight.
func (s *Service) ResetDailyCost() {
	s.cost.Reset(utcDay(time.Now()))
	s.logger.Info().Msg("Daily LLM spend reset")
}

// Close aborts in-flight provider calls and stops the drainer.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.batch.close()
		if s.provider != nil {
			_ = s.provider.Close()
		}
	})
	return nil
}
