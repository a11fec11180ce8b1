package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type providerCall struct {
	model  string
	system string
	prompt string
}

type fakeTextProvider struct {
	mu      sync.Mutex
	calls   []providerCall
	respond func(model, prompt string) (string, error)
}

func (f *fakeTextProvider) Generate(_ context.Context, model, system, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, providerCall{model: model, system: system, prompt: prompt})
	f.mu.Unlock()
	return f.respond(model, prompt)
}

func (f *fakeTextProvider) Name() string { return "fake" }
func (f *fakeTextProvider) Close() error { return nil }

func (f *fakeTextProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTextProvider) callModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.model
	}
	return out
}

type fakeAnalysisCache struct {
	mu      sync.Mutex
	entries map[string]*models.AnalysisCacheEntry
}

func newFakeAnalysisCache() *fakeAnalysisCache {
	return &fakeAnalysisCache{entries: make(map[string]*models.AnalysisCacheEntry)}
}

func (f *fakeAnalysisCache) Get(fp string, ttl time.Duration) (*models.Analysis, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[fp]
	if e == nil || e.Expired(time.Now(), ttl) {
		return nil, false
	}
	return e.Analysis, true
}

func (f *fakeAnalysisCache) Put(e *models.AnalysisCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.DocFingerprint] = e
	return nil
}

func (f *fakeAnalysisCache) Purge(time.Duration) (int, error) { return 0, nil }
func (f *fakeAnalysisCache) Close() error                     { return nil }

// yamlResponse renders a fenced response covering the given doc ids, the
// way a well-behaved model would answer.
func yamlResponse(ids ...string) string {
	var sb strings.Builder
	sb.WriteString("```yaml\n")
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("- doc_id: %q\n  summary: \"summary for %s\"\n  sentiment: 0.5\n", id, id))
	}
	sb.WriteString("```\n")
	return sb.String()
}

// respondFromPrompt answers with an entry for every doc id the prompt
// mentions, so batching tests do not depend on call order.
func respondFromPrompt(knownIDs ...string) func(string, string) (string, error) {
	return func(_, prompt string) (string, error) {
		var present []string
		for _, id := range knownIDs {
			if strings.Contains(prompt, "doc_id: "+id) {
				present = append(present, id)
			}
		}
		return yamlResponse(present...), nil
	}
}

func newTestLLM(t *testing.T, provider textProvider, state interfaces.StateStore) (*Service, *fakeAnalysisCache) {
	t.Helper()
	cfg := common.NewDefaultConfig().LLM
	cfg.BatchTimeoutS = 0.05
	cache := newFakeAnalysisCache()
	table := modelTable{simple: "model-s", medium: "model-m", top: "model-t"}
	svc := newService(cfg, provider, table, cache, state, arbor.NewLogger())
	t.Cleanup(func() { _ = svc.Close() })
	return svc, cache
}

func TestAnalyzeServesFromCache(t *testing.T) {
	provider := &fakeTextProvider{respond: func(string, string) (string, error) {
		return "", fmt.Errorf("should not be called")
	}}
	svc, cache := newTestLLM(t, provider, newFakeStateStore())

	err := cache.Put(&models.AnalysisCacheEntry{
		DocFingerprint: "cached1",
		Analysis:       &models.Analysis{DocID: "cached1", Summary: "prior result", Sentiment: 0.3},
		Model:          "model-s",
		CachedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "cached1", FormType: "8-K", Body: "short"},
	})

	require.NotNil(t, out["cached1"])
	assert.True(t, out["cached1"].FromCache)
	assert.Equal(t, "prior result", out["cached1"].Summary)
	assert.Zero(t, provider.callCount())
	assert.Zero(t, svc.SpentToday())
}

func TestAnalyzeBatchesByModelClass(t *testing.T) {
	provider := &fakeTextProvider{respond: respondFromPrompt("simple1", "crit1")}
	svc, cache := newTestLLM(t, provider, newFakeStateStore())

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "simple1", FormType: "8-K", Body: "short press release"},
		{DocID: "crit1", FormType: "8-K", ItemCodes: []string{"1.03"}, Body: "chapter 11 petition"},
	})

	require.NotNil(t, out["simple1"])
	require.NotNil(t, out["crit1"])

	// One call per model class, cheapest first.
	require.Equal(t, []string{"model-s", "model-t"}, provider.callModels())

	assert.Equal(t, "model-s", out["simple1"].Model)
	assert.Equal(t, models.TierSimple, out["simple1"].Tier)
	assert.Equal(t, "model-t", out["crit1"].Model)
	assert.Equal(t, models.TierCritical, out["crit1"].Tier)
	assert.Greater(t, out["crit1"].CostUSD, 0.0)
	assert.False(t, out["crit1"].FromCache)

	assert.Greater(t, svc.SpentToday(), 0.0)

	cached, ok := cache.Get("crit1", time.Hour)
	require.True(t, ok)
	assert.Equal(t, "summary for crit1", cached.Summary)
}

func TestAnalyzeSecondPassHitsCache(t *testing.T) {
	provider := &fakeTextProvider{respond: respondFromPrompt("doc1")}
	svc, _ := newTestLLM(t, provider, newFakeStateStore())

	docs := []*models.SECDoc{{DocID: "doc1", FormType: "8-K", Body: "short"}}
	first := svc.Analyze(context.Background(), docs)
	require.NotNil(t, first["doc1"])

	second := svc.Analyze(context.Background(), docs)
	require.NotNil(t, second["doc1"])
	assert.True(t, second["doc1"].FromCache)
	assert.Equal(t, 1, provider.callCount())
}

func TestAnalyzeDisabledTierGetsNilEntry(t *testing.T) {
	provider := &fakeTextProvider{respond: func(string, string) (string, error) {
		return "", fmt.Errorf("should not be called")
	}}
	state := newFakeStateStore()
	state.days[utcDay(time.Now())] = &models.CostDay{Day: utcDay(time.Now()), SpentUSD: 25}

	svc, _ := newTestLLM(t, provider, state)

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "d1", FormType: "8-K", Body: "short"},
	})

	entry, present := out["d1"]
	assert.True(t, present)
	assert.Nil(t, entry)
	assert.Zero(t, provider.callCount())
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM
	svc := newService(cfg, nil, modelTable{}, newFakeAnalysisCache(), newFakeStateStore(), arbor.NewLogger())
	t.Cleanup(func() { _ = svc.Close() })

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "d1", FormType: "8-K", Body: "short"},
	})

	entry, present := out["d1"]
	assert.True(t, present)
	assert.Nil(t, entry)
}

func TestAnalyzeMissingDocGetsNil(t *testing.T) {
	// The model only answers for one of the two documents.
	provider := &fakeTextProvider{respond: respondFromPrompt("answered")}
	svc, _ := newTestLLM(t, provider, newFakeStateStore())

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "answered", FormType: "8-K", Body: "short"},
		{DocID: "skipped", FormType: "8-K", Body: "short"},
	})

	assert.NotNil(t, out["answered"])
	assert.Nil(t, out["skipped"])
}

func TestAnalyzeProviderErrorGetsNil(t *testing.T) {
	provider := &fakeTextProvider{respond: func(string, string) (string, error) {
		return "", fmt.Errorf("upstream unavailable")
	}}
	svc, _ := newTestLLM(t, provider, newFakeStateStore())

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "d1", FormType: "8-K", Body: "short"},
	})

	assert.Nil(t, out["d1"])
	assert.Zero(t, svc.SpentToday())
}

func TestAnalyzeDeduplicatesDocIDs(t *testing.T) {
	provider := &fakeTextProvider{respond: respondFromPrompt("dup")}
	svc, _ := newTestLLM(t, provider, newFakeStateStore())

	out := svc.Analyze(context.Background(), []*models.SECDoc{
		{DocID: "dup", FormType: "8-K", Body: "short"},
		{DocID: "dup", FormType: "8-K", Body: "short"},
	})

	assert.Len(t, out, 1)
	require.NotNil(t, out["dup"])
	assert.Equal(t, 1, provider.callCount())
}

func TestServiceCloseIsIdempotent(t *testing.T) {
	provider := &fakeTextProvider{respond: respondFromPrompt()}
	svc, _ := newTestLLM(t, provider, newFakeStateStore())

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
}
