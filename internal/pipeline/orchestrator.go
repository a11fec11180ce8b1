// Package pipeline drives the fetch-to-alert cycle. One orchestrator owns
// the loop: it fans in fresh items, collapses duplicates, resolves and
// scores candidates, enriches them with market data, applies the filter
// gates in their fixed order and delivers what survives, keeping the
// per-cycle accounting balanced throughout.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// llmStageBudget bounds the wait for filing analyses inside one cycle. An
// analysis that misses the window stays nil on its item; the alert still
// goes out on the keyword score and the completed batch lands in the
// cache for any replay of the same document.
const llmStageBudget = 30 * time.Second

// Deps collects the collaborators one cycle consumes. The app wires a
// single instance at startup; tests substitute fakes per field.
type Deps struct {
	Fetcher    interfaces.FetcherService
	Dedup      interfaces.DedupService
	Resolver   interfaces.ResolverService
	Classifier interfaces.ClassifierService
	Sentiment  interfaces.SentimentService
	LLM        interfaces.LLMService
	MarketData interfaces.MarketDataService
	Enricher   interfaces.EnrichmentService
	Formatter  interfaces.AlertFormatter
	Poster     interfaces.WebhookPoster
	Events     interfaces.EventWriter
	Seen       interfaces.SeenStore
	State      interfaces.StateStore
	Clock      *common.MarketClock
}

// Orchestrator runs cycles sequentially and carries the little state that
// spans them: the empty-cycle streak and the in-memory fallback for
// fingerprints whose durable mark failed.
type Orchestrator struct {
	cfg    *common.Config
	deps   Deps
	logger arbor.ILogger

	watch      map[string]bool // crypto-gate exemptions
	skipSource map[string]bool
	categories map[string]bool
	allowAll   bool

	memSeen     map[string]bool
	emptyStreak int

	mu        sync.Mutex
	lastStats *models.CycleStats
}

// New builds an orchestrator with the gate lookups precomputed from
// configuration.
func New(cfg *common.Config, deps Deps, logger arbor.ILogger) *Orchestrator {
	watch := make(map[string]bool, len(cfg.Resolver.Watchlist))
	for _, symbol := range cfg.Resolver.Watchlist {
		if symbol = strings.ToUpper(strings.TrimSpace(symbol)); symbol != "" {
			watch[symbol] = true
		}
	}

	skip := make(map[string]bool, len(cfg.Gates.SkipSources))
	for _, source := range cfg.Gates.SkipSources {
		if source = strings.TrimSpace(source); source != "" {
			skip[source] = true
		}
	}

	categories := make(map[string]bool, len(cfg.Gates.CategoriesAllow))
	allowAll := len(cfg.Gates.CategoriesAllow) == 0
	for _, category := range cfg.Gates.CategoriesAllow {
		category = strings.TrimSpace(category)
		if category == "*" {
			allowAll = true
			continue
		}
		if category != "" {
			categories[category] = true
		}
	}

	return &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		watch:      watch,
		skipSource: skip,
		categories: categories,
		allowAll:   allowAll,
		memSeen:    make(map[string]bool),
	}
}

// Run executes cycles until ctx is cancelled. The in-flight cycle always
// completes; blocking calls inside it observe the cancellation and
// degrade to partial results rather than aborting the accounting.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info().
		Str("session", string(o.deps.Clock.Session())).
		Str("cadence", o.Interval().String()).
		Msg("Pipeline started")

	for {
		started := time.Now()
		o.RunOnce(ctx)
		if ctx.Err() != nil {
			o.logger.Info().Msg("Pipeline stopped")
			return
		}

		wait := o.Interval() - time.Since(started)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("Pipeline stopped")
			return
		case <-time.After(wait):
		}
	}
}

// Interval returns the cycle cadence for the current market session,
// floored at the configured regular cadence.
func (o *Orchestrator) Interval() time.Duration {
	var seconds int
	switch o.deps.Clock.Session() {
	case common.SessionRegular:
		seconds = o.cfg.Cycle.MarketOpenSec
	case common.SessionPreMarket, common.SessionAfterHours:
		seconds = o.cfg.Cycle.ExtendedHoursSec
	default:
		seconds = o.cfg.Cycle.MarketClosedSec
	}
	if seconds < o.cfg.Cycle.RegularSec {
		seconds = o.cfg.Cycle.RegularSec
	}
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// RunOnce executes one full cycle and returns its accounting. Stage
// failures degrade the cycle; they never abort it.
func (o *Orchestrator) RunOnce(ctx context.Context) *models.CycleStats {
	stats := models.NewCycleStats(common.NewCycleID(), string(o.deps.Clock.Session()))
	log := o.logger.WithCorrelationId(stats.CycleID)

	weights := o.deps.Classifier.ReloadWeights()

	items := o.deps.Fetcher.FetchAll(ctx, stats)
	items = o.deps.Dedup.Dedup(items, stats)
	items = o.filterSeen(items, stats, log)

	survivors := o.resolveItems(items, stats, log)
	o.analyzeFilings(ctx, survivors, log)
	o.deps.Sentiment.AnalyzeBatch(ctx, survivors)
	survivors = o.finishScores(survivors, weights, stats, log)

	candidates := append(survivors, o.takeDeferred(survivors, stats, log)...)

	enrichment := o.enrich(ctx, candidates, stats)
	candidates = o.applyGates(candidates, enrichment, stats, log)
	sortCandidates(candidates)
	candidates = o.capAndDefer(candidates, stats, log)

	o.deliver(ctx, candidates, enrichment, stats, log)

	stats.Finish()
	o.logCycle(stats, log)
	if err := o.deps.Events.WriteCycle(stats); err != nil {
		log.Warn().Err(err).Msg("Cycle event append failed")
	}
	o.trackEmptyStreak(ctx, stats, log)

	o.mu.Lock()
	o.lastStats = stats
	o.mu.Unlock()
	return stats
}

// LastStats returns the most recent completed cycle's counters for the
// health endpoint, nil before the first cycle finishes.
func (o *Orchestrator) LastStats() *models.CycleStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastStats
}

// filterSeen drops items already alerted. Store read errors count as not
// seen so a degraded store never silences fresh news.
func (o *Orchestrator) filterSeen(items []*models.NewsItem, stats *models.CycleStats, log arbor.ILogger) []*models.NewsItem {
	fresh := make([]*models.NewsItem, 0, len(items))
	for _, item := range items {
		fp := item.Fingerprint()
		seen, err := o.deps.Seen.Seen(fp)
		if err != nil {
			log.Debug().Err(err).Str("fingerprint", fp).Msg("Seen lookup failed, treating as fresh")
			seen = false
		}
		if seen || o.memSeen[fp] {
			stats.Skip(models.SkipSeen)
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh
}

// resolveItems runs gates 1-3 over the fresh items: ticker attribution,
// the crypto exemption and the relevance cutoff.
func (o *Orchestrator) resolveItems(items []*models.NewsItem, stats *models.CycleStats, log arbor.ILogger) []*models.ScoredItem {
	survivors := make([]*models.ScoredItem, 0, len(items))
	for _, item := range items {
		scored, reason, err := o.resolveOne(item)
		if err != nil {
			stats.DroppedError++
			log.Error().
				Str("source", item.Source).
				Str("title", item.Title).
				Err(err).
				Msg("Resolver panic, item dropped")
			continue
		}
		if reason != "" {
			stats.Skip(reason)
			continue
		}
		survivors = append(survivors, scored)
	}
	return survivors
}

func (o *Orchestrator) resolveOne(item *models.NewsItem) (scored *models.ScoredItem, skip string, err error) {
	defer func() {
		if r := recover(); r != nil {
			scored, skip = nil, ""
			err = fmt.Errorf("resolve: %v", r)
		}
	}()

	primaries, relevance := o.deps.Resolver.Resolve(item)
	if len(primaries) == 0 {
		if len(relevance) == 0 {
			return nil, models.SkipNoTicker, nil
		}
		if o.allCrypto(relevance) {
			return nil, models.SkipCrypto, nil
		}
		return nil, models.SkipLowRelevance, nil
	}

	kept := make([]string, 0, len(primaries))
	for _, symbol := range primaries {
		ticker := common.ParseTicker(symbol)
		if ticker.IsCrypto() && !o.watch[ticker.Code] {
			continue
		}
		kept = append(kept, symbol)
	}
	if len(kept) == 0 {
		return nil, models.SkipCrypto, nil
	}

	return &models.ScoredItem{
		Item:             item,
		PrimaryTicker:    kept[0],
		SecondaryTickers: kept[1:],
		RelevanceScores:  relevance,
	}, "", nil
}

// allCrypto reports whether every scored candidate is an unwatchlisted
// coin, so the crypto gate claims the skip ahead of the relevance gate.
func (o *Orchestrator) allCrypto(relevance map[string]int) bool {
	for symbol := range relevance {
		ticker := common.ParseTicker(symbol)
		if !ticker.IsCrypto() || o.watch[ticker.Code] {
			return false
		}
	}
	return len(relevance) > 0
}

// analyzeFilings routes SEC survivors through the LLM under the stage
// budget and attaches whatever analyses come back in time.
func (o *Orchestrator) analyzeFilings(ctx context.Context, survivors []*models.ScoredItem, log arbor.ILogger) {
	var docs []*models.SECDoc
	index := make(map[string]*models.ScoredItem)
	for _, scored := range survivors {
		if !scored.Item.IsSEC() {
			continue
		}
		doc := secDocFor(scored)
		docs = append(docs, doc)
		index[doc.DocID] = scored
	}
	if len(docs) == 0 {
		return
	}

	llmCtx, cancel := context.WithTimeout(ctx, llmStageBudget)
	defer cancel()

	attached := 0
	for docID, analysis := range o.deps.LLM.Analyze(llmCtx, docs) {
		if analysis == nil {
			continue
		}
		if scored, ok := index[docID]; ok {
			scored.Analysis = analysis
			attached++
		}
	}
	log.Debug().Int("docs", len(docs)).Int("analyzed", attached).Msg("Filing analyses attached")
}

// secDocFor translates a resolved SEC item into the analysis request. The
// Atom summary stands in for the filing body; EDGAR's full text is not
// fetched inline.
func secDocFor(scored *models.ScoredItem) *models.SECDoc {
	item := scored.Item
	doc := &models.SECDoc{
		DocID:     item.Fingerprint(),
		Accession: item.Accession(),
		Ticker:    scored.PrimaryTicker,
		Body:      item.Summary,
		QueuedAt:  time.Now().UTC(),
	}
	if doc.Body == "" {
		doc.Body = item.Title
	}
	if v, ok := item.RawFields[models.RawKeyFormType]; ok {
		doc.FormType = v.AsString()
	}
	if v, ok := item.RawFields[models.RawKeyCIK]; ok {
		doc.CIK = v.AsString()
	}
	if v, ok := item.RawFields[models.RawKeyCompany]; ok {
		doc.Company = v.AsString()
	}
	if v, ok := item.RawFields[models.RawKeyItemCodes]; ok {
		for _, code := range strings.Split(v.AsString(), ",") {
			if code = strings.TrimSpace(code); code != "" {
				doc.ItemCodes = append(doc.ItemCodes, code)
			}
		}
	}
	return doc
}

// finishScores runs the full classification pass once sentiment is in
// place. A per-item panic drops that item only.
func (o *Orchestrator) finishScores(survivors []*models.ScoredItem, weights *models.DynamicWeights, stats *models.CycleStats, log arbor.ILogger) []*models.ScoredItem {
	kept := survivors[:0]
	for _, scored := range survivors {
		if err := o.classifyOne(scored, weights); err != nil {
			stats.DroppedError++
			log.Error().
				Str("ticker", scored.PrimaryTicker).
				Str("title", scored.Item.Title).
				Err(err).
				Msg("Classifier panic, item dropped")
			continue
		}
		stats.Classified++
		kept = append(kept, scored)
	}
	return kept
}

func (o *Orchestrator) classifyOne(scored *models.ScoredItem, weights *models.DynamicWeights) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classify: %v", r)
		}
	}()

	score, hits := o.deps.Classifier.ClassifyFull(scored.Item, weights, scored.Sentiment)
	scored.CatalystScore = score
	scored.KeywordHits = hits
	scored.TopCategory = o.deps.Classifier.TopCategory(hits)
	scored.ClassifiedAt = time.Now().UTC()
	return nil
}

// takeDeferred re-queues items pushed past the previous cycle's alert
// cap. Revived items join this cycle's fetched base so the accounting
// identity holds however they end up; one that re-arrived from its feed
// this cycle collapses as a duplicate.
func (o *Orchestrator) takeDeferred(survivors []*models.ScoredItem, stats *models.CycleStats, log arbor.ILogger) []*models.ScoredItem {
	deferred, err := o.deps.State.TakeDeferred()
	if err != nil {
		log.Warn().Err(err).Msg("Deferred items unavailable")
		return nil
	}
	if len(deferred) == 0 {
		return nil
	}

	current := make(map[string]bool, len(survivors))
	for _, scored := range survivors {
		current[scored.Item.Fingerprint()] = true
	}

	revived := make([]*models.ScoredItem, 0, len(deferred))
	for _, item := range deferred {
		if item.Scored == nil || item.Scored.Item == nil {
			continue
		}
		stats.Fetched++
		if current[item.Fingerprint] {
			stats.Skip(models.SkipDuplicate)
			continue
		}
		revived = append(revived, item.Scored)
	}
	if len(revived) > 0 {
		log.Info().Int("count", len(revived)).Msg("Deferred items re-queued")
	}
	return revived
}

// enrich gathers quotes and derived fields for every candidate ticker.
// Partial data is expected; a ticker with no record alerts without chips.
func (o *Orchestrator) enrich(ctx context.Context, candidates []*models.ScoredItem, stats *models.CycleStats) map[string]*models.EnrichmentRecord {
	if len(candidates) == 0 {
		return nil
	}

	unique := make(map[string]bool)
	tickers := make([]string, 0, len(candidates))
	for _, scored := range candidates {
		for _, ticker := range scored.AllTickers() {
			if !unique[ticker] {
				unique[ticker] = true
				tickers = append(tickers, ticker)
			}
		}
	}

	quotes := o.deps.MarketData.BatchPrices(ctx, tickers)
	records := o.deps.Enricher.Enrich(ctx, tickers, quotes)
	for _, scored := range candidates {
		if records[scored.PrimaryTicker] != nil {
			stats.Enriched++
		}
	}
	return records
}

// sortCandidates orders alerts strongest-first: catalyst score, then
// recency, then fingerprint so equal items keep a stable order.
func sortCandidates(candidates []*models.ScoredItem) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CatalystScore != candidates[j].CatalystScore {
			return candidates[i].CatalystScore > candidates[j].CatalystScore
		}
		if !candidates[i].Item.PublishedAt.Equal(candidates[j].Item.PublishedAt) {
			return candidates[i].Item.PublishedAt.After(candidates[j].Item.PublishedAt)
		}
		return candidates[i].Item.Fingerprint() < candidates[j].Item.Fingerprint()
	})
}

// capAndDefer trims the ordered candidates to the per-cycle cap and
// persists the overflow for the next cycle.
func (o *Orchestrator) capAndDefer(candidates []*models.ScoredItem, stats *models.CycleStats, log arbor.ILogger) []*models.ScoredItem {
	limit := o.cfg.Alerts.MaxPerCycle
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}

	overflow := candidates[limit:]
	now := time.Now().UTC()
	deferred := make([]*models.DeferredItem, 0, len(overflow))
	for _, scored := range overflow {
		deferred = append(deferred, &models.DeferredItem{
			Fingerprint: scored.Item.Fingerprint(),
			Scored:      scored,
			DeferredAt:  now,
			FromCycle:   stats.CycleID,
		})
	}

	if err := o.deps.State.SaveDeferred(deferred); err != nil {
		stats.DroppedError += len(deferred)
		log.Error().Err(err).Int("count", len(deferred)).Msg("Deferred save failed, overflow dropped")
	} else {
		stats.Deferred = len(deferred)
		log.Info().Int("count", len(deferred)).Int("cap", limit).Msg("Alert overflow deferred")
	}
	return candidates[:limit]
}

// deliver formats and posts each candidate in order, appending the alert
// event and marking the fingerprint only after a confirmed delivery.
func (o *Orchestrator) deliver(ctx context.Context, candidates []*models.ScoredItem, enrichment map[string]*models.EnrichmentRecord, stats *models.CycleStats, log arbor.ILogger) {
	for _, scored := range candidates {
		alert := o.deps.Formatter.Format(scored, enrichment[scored.PrimaryTicker])
		result := o.deps.Poster.Post(ctx, alert)
		if err := o.deps.Events.WriteAlert(alert, result); err != nil {
			log.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert event append failed")
		}

		if result.OK {
			stats.AlertsSent++
			o.markSeen(ctx, alert, scored, log)
			log.Info().
				Str("ticker", alert.Ticker).
				Float64("score", alert.CatalystScore).
				Str("message_id", result.MessageID).
				Msg("Alert delivered")
			continue
		}

		stats.AlertsFailed++
		log.Warn().
			Str("ticker", alert.Ticker).
			Int("status", result.StatusCode).
			Int("attempts", result.Attempts).
			Err(result.Err).
			Msg("Alert delivery failed")
	}
}

// markSeen persists the fingerprint after a delivered alert. One retry,
// then the in-memory fallback keeps the process from re-alerting while
// the store is unhealthy.
func (o *Orchestrator) markSeen(ctx context.Context, alert *models.Alert, scored *models.ScoredItem, log arbor.ILogger) {
	record := &models.SeenRecord{
		Fingerprint: alert.IdempotencyKey,
		Source:      scored.Item.Source,
		Weight:      o.cfg.Feeds.SourceWeight(scored.Item.Source),
		FirstSeenAt: time.Now().UTC(),
	}

	err := o.deps.Seen.Mark(ctx, record)
	if err != nil {
		err = o.deps.Seen.Mark(ctx, record)
	}
	if err == nil {
		return
	}

	o.memSeen[record.Fingerprint] = true
	log.Error().
		Err(err).
		Str("fingerprint", record.Fingerprint).
		Msg("Seen mark failed twice, fingerprint held in memory only")
}

// trackEmptyStreak warns the admin channel after the configured run of
// empty cycles. The streak resets on the first cycle with fresh work.
func (o *Orchestrator) trackEmptyStreak(ctx context.Context, stats *models.CycleStats, log arbor.ILogger) {
	if !stats.Empty() {
		o.emptyStreak = 0
		return
	}

	o.emptyStreak++
	warnAt := o.cfg.Alerts.EmptyCycleWarnN
	if warnAt <= 0 || o.emptyStreak != warnAt {
		return
	}

	notice := fmt.Sprintf("No fresh items for %d consecutive cycles (session %s). Feeds may be stalled.", o.emptyStreak, stats.Session)
	if err := o.deps.Poster.PostAdmin(ctx, notice); err != nil {
		log.Warn().Err(err).Msg("Empty-cycle warning not delivered")
		return
	}
	log.Info().Int("cycles", o.emptyStreak).Msg("Empty-cycle warning sent")
}

func (o *Orchestrator) logCycle(stats *models.CycleStats, log arbor.ILogger) {
	if !stats.Balanced() {
		accounted := stats.AlertsSent + stats.AlertsFailed + stats.SkippedTotal() + stats.Deferred + stats.DroppedError
		log.Warn().
			Int("fetched", stats.Fetched).
			Int("accounted", accounted).
			Msg("Cycle accounting out of balance")
	}

	log.Info().
		Str("session", stats.Session).
		Int("fetched", stats.Fetched).
		Int("deduped", stats.Deduped).
		Int("classified", stats.Classified).
		Int("enriched", stats.Enriched).
		Int("sent", stats.AlertsSent).
		Int("failed", stats.AlertsFailed).
		Int("skipped", stats.SkippedTotal()).
		Int("deferred", stats.Deferred).
		Int("dropped", stats.DroppedError).
		Int64("duration_ms", stats.DurationMS).
		Msg("Cycle complete")
}
