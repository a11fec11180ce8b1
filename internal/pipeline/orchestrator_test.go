package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type fakeFetcher struct {
	items []*models.NewsItem
}

func (f *fakeFetcher) FetchAll(_ context.Context, stats *models.CycleStats) []*models.NewsItem {
	stats.Fetched = len(f.items)
	out := make([]*models.NewsItem, len(f.items))
	copy(out, f.items)
	return out
}

func (f *fakeFetcher) Sources() []interfaces.FeedSource { return nil }

type fakeDedup struct{}

func (fakeDedup) Dedup(items []*models.NewsItem, stats *models.CycleStats) []*models.NewsItem {
	stats.Deduped = len(items)
	return items
}

type fakeResolver struct {
	fn func(item *models.NewsItem) ([]string, map[string]int)
}

func (r *fakeResolver) Resolve(item *models.NewsItem) ([]string, map[string]int) {
	return r.fn(item)
}

// tickersAsResolved attributes every carried ticker at relevance 80.
func tickersAsResolved(item *models.NewsItem) ([]string, map[string]int) {
	if len(item.Tickers) == 0 {
		return nil, nil
	}
	relevance := make(map[string]int, len(item.Tickers))
	for _, ticker := range item.Tickers {
		relevance[ticker] = 80
	}
	return append([]string(nil), item.Tickers...), relevance
}

type fakeClassifier struct {
	scores     map[string]float64 // title -> catalyst score
	categories map[string]string  // title -> top category
	reloads    int
}

func (c *fakeClassifier) Classify(item *models.NewsItem, _ *models.DynamicWeights) (float64, map[string]float64) {
	score := c.scores[item.Title]
	return score, map[string]float64{c.categoryFor(item.Title): score}
}

func (c *fakeClassifier) ClassifyFull(item *models.NewsItem, weights *models.DynamicWeights, _ *models.Sentiment) (float64, map[string]float64) {
	return c.Classify(item, weights)
}

func (c *fakeClassifier) ReloadWeights() *models.DynamicWeights {
	c.reloads++
	return &models.DynamicWeights{Baseline: 0.50, LoadedAt: time.Now()}
}

func (c *fakeClassifier) TopCategory(hits map[string]float64) string {
	for category := range hits {
		return category
	}
	return ""
}

func (c *fakeClassifier) categoryFor(title string) string {
	if category, ok := c.categories[title]; ok {
		return category
	}
	return "fda_approval"
}

type fakeSentiment struct {
	scores map[string]float64 // title -> aggregate score
}

func (s *fakeSentiment) Analyze(_ context.Context, item *models.NewsItem, _ string) *models.Sentiment {
	if v, ok := s.scores[item.Title]; ok {
		return &models.Sentiment{Aggregate: &models.SentimentSignal{Score: v, Confidence: 0.6}}
	}
	return &models.Sentiment{}
}

func (s *fakeSentiment) AnalyzeBatch(_ context.Context, items []*models.ScoredItem) {
	for _, scored := range items {
		if v, ok := s.scores[scored.Item.Title]; ok {
			scored.Sentiment = &models.Sentiment{Aggregate: &models.SentimentSignal{Score: v, Confidence: 0.6}}
		}
	}
}

type fakeLLM struct {
	analyses map[string]*models.Analysis // doc id -> analysis
	gotDocs  []*models.SECDoc
}

func (l *fakeLLM) Analyze(_ context.Context, docs []*models.SECDoc) map[string]*models.Analysis {
	l.gotDocs = append(l.gotDocs, docs...)
	out := make(map[string]*models.Analysis, len(docs))
	for _, doc := range docs {
		out[doc.DocID] = l.analyses[doc.DocID]
	}
	return out
}

func (l *fakeLLM) SpentToday() float64 { return 0 }

func (l *fakeLLM) Close() error { return nil }

type fakeMarketData struct {
	quotes map[string]*models.PriceQuote
}

func (m *fakeMarketData) BatchPrices(_ context.Context, tickers []string) map[string]*models.PriceQuote {
	out := make(map[string]*models.PriceQuote)
	for _, ticker := range tickers {
		if quote, ok := m.quotes[ticker]; ok {
			out[ticker] = quote
		}
	}
	return out
}

func (m *fakeMarketData) GetRVOL(context.Context, string) (float64, error)             { return 0, nil }
func (m *fakeMarketData) GetFloat(context.Context, string) (float64, error)            { return 0, nil }
func (m *fakeMarketData) GetVWAP(context.Context, string) (float64, error)             { return 0, nil }
func (m *fakeMarketData) GetEarningsSurprise(context.Context, string) (float64, error) { return 0, nil }
func (m *fakeMarketData) ProviderStates() map[string]string                            { return map[string]string{} }

type fakeEnricher struct {
	records map[string]*models.EnrichmentRecord
}

func (e *fakeEnricher) Enrich(_ context.Context, tickers []string, quotes map[string]*models.PriceQuote) map[string]*models.EnrichmentRecord {
	out := make(map[string]*models.EnrichmentRecord)
	for _, ticker := range tickers {
		if record, ok := e.records[ticker]; ok {
			out[ticker] = record
			continue
		}
		if quote, ok := quotes[ticker]; ok {
			out[ticker] = &models.EnrichmentRecord{
				Ticker:    ticker,
				LastPrice: models.Float64Ptr(quote.Price),
				ChangePct: models.Float64Ptr(quote.ChangePct),
				AsOf:      time.Now().UTC(),
			}
		}
	}
	return out
}

type fakeFormatter struct {
	got []*models.ScoredItem
}

func (f *fakeFormatter) Format(scored *models.ScoredItem, _ *models.EnrichmentRecord) *models.Alert {
	f.got = append(f.got, scored)
	return &models.Alert{
		ID:             common.NewAlertID(),
		Ticker:         scored.PrimaryTicker,
		Title:          scored.Item.Title,
		IdempotencyKey: scored.Item.Fingerprint(),
		CatalystScore:  scored.CatalystScore,
		Category:       scored.TopCategory,
		Source:         scored.Item.Source,
		PublishedAt:    scored.Item.PublishedAt,
		FormattedAt:    time.Now().UTC(),
		Payload:        &models.WebhookPayload{},
	}
}

type fakePoster struct {
	posted []*models.Alert
	fail   map[string]bool // ticker -> force failure
	admin  []string
}

func (p *fakePoster) Post(_ context.Context, alert *models.Alert) *models.PostResult {
	p.posted = append(p.posted, alert)
	if p.fail[alert.Ticker] {
		return &models.PostResult{StatusCode: 500, Attempts: 3, Err: errors.New("upstream unavailable")}
	}
	return &models.PostResult{OK: true, StatusCode: 200, MessageID: "msg-1", Attempts: 1}
}

func (p *fakePoster) PostAdmin(_ context.Context, text string) error {
	p.admin = append(p.admin, text)
	return nil
}

type fakeEvents struct {
	alerts []*models.Alert
	cycles []*models.CycleStats
}

func (e *fakeEvents) WriteAlert(alert *models.Alert, _ *models.PostResult) error {
	e.alerts = append(e.alerts, alert)
	return nil
}

func (e *fakeEvents) WriteCycle(stats *models.CycleStats) error {
	e.cycles = append(e.cycles, stats)
	return nil
}

func (e *fakeEvents) Close() error { return nil }

type fakeSeenStore struct {
	seen     map[string]bool
	failNext int // Mark calls to fail before succeeding
	marks    int
}

func (s *fakeSeenStore) Seen(fingerprint string) (bool, error) { return s.seen[fingerprint], nil }

func (s *fakeSeenStore) Mark(_ context.Context, record *models.SeenRecord) error {
	s.marks++
	if s.failNext > 0 {
		s.failNext--
		return errors.New("badger: write conflict")
	}
	s.seen[record.Fingerprint] = true
	return nil
}

func (s *fakeSeenStore) PurgeExpired(context.Context) (int, error) { return 0, nil }
func (s *fakeSeenStore) Count() (int, error)                       { return len(s.seen), nil }
func (s *fakeSeenStore) Close() error                              { return nil }

type fakeStateStore struct {
	deferred []*models.DeferredItem
	saveErr  error
}

func (s *fakeStateStore) GetFeedState(string) (*models.FeedState, error) { return nil, nil }
func (s *fakeStateStore) SaveFeedState(*models.FeedState) error          { return nil }

func (s *fakeStateStore) SaveDeferred(items []*models.DeferredItem) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.deferred = append(s.deferred, items...)
	return nil
}

func (s *fakeStateStore) TakeDeferred() ([]*models.DeferredItem, error) {
	out := s.deferred
	s.deferred = nil
	return out, nil
}

func (s *fakeStateStore) GetCostDay(string) (*models.CostDay, error) { return nil, nil }
func (s *fakeStateStore) SaveCostDay(*models.CostDay) error          { return nil }
func (s *fakeStateStore) Close() error                               { return nil }

// rig wires an orchestrator over fakes. Tests mutate the fields they
// care about before calling build.
type rig struct {
	cfg        *common.Config
	fetcher    *fakeFetcher
	resolver   *fakeResolver
	classifier *fakeClassifier
	sentiment  *fakeSentiment
	llm        *fakeLLM
	market     *fakeMarketData
	enricher   *fakeEnricher
	formatter  *fakeFormatter
	poster     *fakePoster
	events     *fakeEvents
	seen       *fakeSeenStore
	state      *fakeStateStore
}

func newRig() *rig {
	cfg := common.NewDefaultConfig()
	cfg.Alerts.WebhookURL = "https://hooks.example/wh"
	return &rig{
		cfg:        cfg,
		fetcher:    &fakeFetcher{},
		resolver:   &fakeResolver{fn: tickersAsResolved},
		classifier: &fakeClassifier{scores: map[string]float64{}, categories: map[string]string{}},
		sentiment:  &fakeSentiment{scores: map[string]float64{}},
		llm:        &fakeLLM{analyses: map[string]*models.Analysis{}},
		market:     &fakeMarketData{quotes: map[string]*models.PriceQuote{}},
		enricher:   &fakeEnricher{records: map[string]*models.EnrichmentRecord{}},
		formatter:  &fakeFormatter{},
		poster:     &fakePoster{fail: map[string]bool{}},
		events:     &fakeEvents{},
		seen:       &fakeSeenStore{seen: map[string]bool{}},
		state:      &fakeStateStore{},
	}
}

func (r *rig) build() *Orchestrator {
	return New(r.cfg, Deps{
		Fetcher:    r.fetcher,
		Dedup:      fakeDedup{},
		Resolver:   r.resolver,
		Classifier: r.classifier,
		Sentiment:  r.sentiment,
		LLM:        r.llm,
		MarketData: r.market,
		Enricher:   r.enricher,
		Formatter:  r.formatter,
		Poster:     r.poster,
		Events:     r.events,
		Seen:       r.seen,
		State:      r.state,
		Clock:      common.NewMarketClock(nil),
	}, arbor.NewLogger())
}

func newsItem(title, source, ticker string) *models.NewsItem {
	item := &models.NewsItem{
		Source:       source,
		SourceType:   models.SourceTypeRSS,
		SourceID:     "id-" + title,
		Title:        title,
		Summary:      "Details for " + title,
		CanonicalURL: "https://news.example/story",
		PublishedAt:  time.Now().UTC().Add(-5 * time.Minute),
		FetchedAt:    time.Now().UTC(),
	}
	if ticker != "" {
		item.Tickers = []string{ticker}
	}
	return item
}

func TestRunOnceDeliversAlert(t *testing.T) {
	r := newRig()
	item := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 8.0
	r.market.quotes["ACME"] = &models.PriceQuote{Ticker: "ACME", Price: 4.25}

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Equal(t, 0, stats.AlertsFailed)
	assert.True(t, stats.Balanced())
	require.Len(t, r.poster.posted, 1)
	assert.Equal(t, "ACME", r.poster.posted[0].Ticker)
	assert.True(t, r.seen.seen[item.Fingerprint()])
	assert.Len(t, r.events.alerts, 1)
	require.Len(t, r.events.cycles, 1)
	assert.Equal(t, stats.CycleID, r.events.cycles[0].CycleID)
}

func TestRunOnceSkipsSeenItem(t *testing.T) {
	r := newRig()
	item := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	r.fetcher.items = []*models.NewsItem{item}
	r.seen.seen[item.Fingerprint()] = true

	stats := r.build().RunOnce(context.Background())

	assert.Empty(t, r.poster.posted)
	assert.Equal(t, 1, stats.Skipped[models.SkipSeen])
	assert.True(t, stats.Balanced())
	assert.True(t, stats.Empty())
}

func TestRunOnceGatesUnattributedItems(t *testing.T) {
	r := newRig()
	r.fetcher.items = []*models.NewsItem{
		newsItem("Sector roundup with no company", "benzinga", ""),
	}

	stats := r.build().RunOnce(context.Background())

	assert.Empty(t, r.poster.posted)
	assert.Equal(t, 1, stats.Skipped[models.SkipNoTicker])
	assert.True(t, stats.Balanced())
}

func TestRunOnceCryptoGate(t *testing.T) {
	r := newRig()
	item := newsItem("Bitcoin rallies past resistance", "benzinga", "BTC")
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 6.0

	stats := r.build().RunOnce(context.Background())

	assert.Empty(t, r.poster.posted)
	assert.Equal(t, 1, stats.Skipped[models.SkipCrypto])
	assert.True(t, stats.Balanced())
}

func TestRunOnceCryptoWatchlistExemption(t *testing.T) {
	r := newRig()
	r.cfg.Resolver.Watchlist = []string{"BTC"}
	item := newsItem("Bitcoin rallies past resistance", "benzinga", "BTC")
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 6.0

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Zero(t, stats.Skipped[models.SkipCrypto])
	assert.True(t, stats.Balanced())
}

func TestRunOnceCryptoClaimsSkipAheadOfRelevance(t *testing.T) {
	r := newRig()
	r.resolver.fn = func(*models.NewsItem) ([]string, map[string]int) {
		return nil, map[string]int{"DOGE": 25}
	}
	r.fetcher.items = []*models.NewsItem{newsItem("Meme coin chatter", "benzinga", "DOGE")}

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.Skipped[models.SkipCrypto])
	assert.Zero(t, stats.Skipped[models.SkipLowRelevance])
	assert.True(t, stats.Balanced())
}

func TestRunOnceLowRelevanceGate(t *testing.T) {
	r := newRig()
	r.resolver.fn = func(*models.NewsItem) ([]string, map[string]int) {
		return nil, map[string]int{"ACME": 20}
	}
	r.fetcher.items = []*models.NewsItem{newsItem("Acme mentioned in passing", "benzinga", "ACME")}

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.Skipped[models.SkipLowRelevance])
	assert.True(t, stats.Balanced())
}

func TestRunOnceMarksOnlyDeliveredAlerts(t *testing.T) {
	r := newRig()
	good := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	bad := newsItem("Orbit signs defense contract", "globenewswire", "ORBT")
	r.fetcher.items = []*models.NewsItem{good, bad}
	r.classifier.scores[good.Title] = 8.0
	r.classifier.scores[bad.Title] = 7.0
	r.poster.fail["ORBT"] = true

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Equal(t, 1, stats.AlertsFailed)
	assert.True(t, stats.Balanced())
	assert.True(t, r.seen.seen[good.Fingerprint()])
	assert.False(t, r.seen.seen[bad.Fingerprint()])
	assert.Len(t, r.events.alerts, 2)
}

func TestRunOnceDefersOverflowToNextCycle(t *testing.T) {
	r := newRig()
	r.cfg.Alerts.MaxPerCycle = 1
	first := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	second := newsItem("Orbit signs defense contract", "globenewswire", "ORBT")
	third := newsItem("Nova raises guidance", "businesswire", "NOVA")
	r.fetcher.items = []*models.NewsItem{first, second, third}
	r.classifier.scores[first.Title] = 9.0
	r.classifier.scores[second.Title] = 7.0
	r.classifier.scores[third.Title] = 5.0

	orch := r.build()
	stats := orch.RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Equal(t, 2, stats.Deferred)
	assert.True(t, stats.Balanced())
	require.Len(t, r.poster.posted, 1)
	assert.Equal(t, "ACME", r.poster.posted[0].Ticker)
	require.Len(t, r.state.deferred, 2)

	r.fetcher.items = nil
	next := orch.RunOnce(context.Background())

	assert.Equal(t, 2, next.Fetched)
	assert.Equal(t, 2, next.AlertsSent)
	assert.True(t, next.Balanced())
	require.Len(t, r.poster.posted, 3)
	assert.Equal(t, "ORBT", r.poster.posted[1].Ticker)
	assert.Equal(t, "NOVA", r.poster.posted[2].Ticker)
	assert.Empty(t, r.state.deferred)
}

func TestRunOnceDeferredDuplicateCollapses(t *testing.T) {
	r := newRig()
	r.cfg.Alerts.MaxPerCycle = 1
	first := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	second := newsItem("Orbit signs defense contract", "globenewswire", "ORBT")
	r.fetcher.items = []*models.NewsItem{first, second}
	r.classifier.scores[first.Title] = 9.0
	r.classifier.scores[second.Title] = 7.0

	orch := r.build()
	orch.RunOnce(context.Background())

	// The deferred item arrives again from its feed while still fresh.
	r.fetcher.items = []*models.NewsItem{second}
	next := orch.RunOnce(context.Background())

	assert.Equal(t, 2, next.Fetched)
	assert.Equal(t, 1, next.AlertsSent)
	assert.Equal(t, 1, next.Skipped[models.SkipDuplicate])
	assert.True(t, next.Balanced())
	require.Len(t, r.poster.posted, 2)
	assert.Equal(t, "ORBT", r.poster.posted[1].Ticker)
}

func TestRunOnceSeenMarkFailureFallsBackToMemory(t *testing.T) {
	r := newRig()
	item := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 8.0
	r.seen.failNext = 2

	orch := r.build()
	stats := orch.RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Equal(t, 2, r.seen.marks) // initial attempt plus one retry
	assert.False(t, r.seen.seen[item.Fingerprint()])

	// The in-memory fallback still suppresses the replay.
	next := orch.RunOnce(context.Background())
	assert.Equal(t, 1, next.Skipped[models.SkipSeen])
	assert.Len(t, r.poster.posted, 1)
	assert.True(t, next.Balanced())
}

func TestRunOnceEmptyCycleWarning(t *testing.T) {
	r := newRig()
	r.cfg.Alerts.EmptyCycleWarnN = 2
	orch := r.build()

	orch.RunOnce(context.Background())
	assert.Empty(t, r.poster.admin)

	orch.RunOnce(context.Background())
	require.Len(t, r.poster.admin, 1)
	assert.Contains(t, r.poster.admin[0], "2 consecutive cycles")

	// Warns once per streak, not once per cycle past the threshold.
	orch.RunOnce(context.Background())
	assert.Len(t, r.poster.admin, 1)

	// Fresh work resets the streak; a second streak warns again.
	item := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 8.0
	orch.RunOnce(context.Background())

	r.fetcher.items = nil
	r.seen.seen = map[string]bool{}
	orch.RunOnce(context.Background())
	orch.RunOnce(context.Background())
	assert.Len(t, r.poster.admin, 2)
}

func TestRunOnceAttachesFilingAnalysis(t *testing.T) {
	r := newRig()
	item := newsItem("8-K - ACME CORP (0001234567) (Filer)", "sec_8k", "ACME")
	item.SourceType = models.SourceTypeSEC
	item.SourceID = "0001193125-25-123456"
	item.RawFields = map[string]models.RawValue{
		models.RawKeyAccession: models.RawString("0001193125-25-123456"),
		models.RawKeyFormType:  models.RawString("8-K"),
		models.RawKeyItemCodes: models.RawString("1.03,9.01"),
		models.RawKeyCompany:   models.RawString("ACME CORP"),
	}
	r.fetcher.items = []*models.NewsItem{item}
	r.classifier.scores[item.Title] = 7.0
	r.llm.analyses[item.Fingerprint()] = &models.Analysis{
		DocID:   item.Fingerprint(),
		Summary: "Voluntary chapter 11 filing to restructure notes.",
		Tier:    models.TierCritical,
	}

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	require.Len(t, r.llm.gotDocs, 1)
	doc := r.llm.gotDocs[0]
	assert.Equal(t, "8-K", doc.FormType)
	assert.Equal(t, []string{"1.03", "9.01"}, doc.ItemCodes)
	assert.Equal(t, "0001193125-25-123456", doc.Accession)
	assert.Equal(t, "ACME", doc.Ticker)

	require.Len(t, r.formatter.got, 1)
	require.NotNil(t, r.formatter.got[0].Analysis)
	assert.Equal(t, "Voluntary chapter 11 filing to restructure notes.", r.formatter.got[0].Analysis.Summary)
}

func TestRunOnceDeferredSaveFailureCountsDropped(t *testing.T) {
	r := newRig()
	r.cfg.Alerts.MaxPerCycle = 1
	r.state.saveErr = errors.New("badger: disk full")
	first := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	second := newsItem("Orbit signs defense contract", "globenewswire", "ORBT")
	r.fetcher.items = []*models.NewsItem{first, second}
	r.classifier.scores[first.Title] = 9.0
	r.classifier.scores[second.Title] = 7.0

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Zero(t, stats.Deferred)
	assert.Equal(t, 1, stats.DroppedError)
	assert.True(t, stats.Balanced())
}

func TestRunOnceResolverPanicDropsItemOnly(t *testing.T) {
	r := newRig()
	good := newsItem("Acme wins FDA approval", "prnewswire", "ACME")
	poison := newsItem("Malformed wire entry", "benzinga", "ZZZZ")
	r.fetcher.items = []*models.NewsItem{good, poison}
	r.classifier.scores[good.Title] = 8.0
	r.resolver.fn = func(item *models.NewsItem) ([]string, map[string]int) {
		if item.Title == poison.Title {
			panic("nil map write")
		}
		return tickersAsResolved(item)
	}

	stats := r.build().RunOnce(context.Background())

	assert.Equal(t, 1, stats.AlertsSent)
	assert.Equal(t, 1, stats.DroppedError)
	assert.True(t, stats.Balanced())
}

func TestIntervalHonorsRegularFloor(t *testing.T) {
	r := newRig()
	r.cfg.Cycle.RegularSec = 60
	r.cfg.Cycle.MarketOpenSec = 45
	r.cfg.Cycle.ExtendedHoursSec = 45
	r.cfg.Cycle.MarketClosedSec = 45

	assert.Equal(t, 60*time.Second, r.build().Interval())

	r.cfg.Cycle.RegularSec = 30
	r.cfg.Cycle.MarketOpenSec = 90
	r.cfg.Cycle.ExtendedHoursSec = 90
	r.cfg.Cycle.MarketClosedSec = 90

	assert.Equal(t, 90*time.Second, r.build().Interval())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := newRig()
	r.cfg.Cycle.RegularSec = 1
	orch := r.build()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop after cancellation")
	}
	require.NotNil(t, orch.LastStats())
}
