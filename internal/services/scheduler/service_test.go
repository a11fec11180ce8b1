package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

type fakeCosts struct {
	spent  float64
	resets int
}

func (c *fakeCosts) ResetDailyCost() { c.resets++ }

func (c *fakeCosts) SpentToday() float64 { return c.spent }

type fakeQuotes struct{ purged int }

func (q *fakeQuotes) PurgeExpired() int { q.purged++; return 3 }

type fakeLexicon struct{ purged int }

func (l *fakeLexicon) Purge() int { l.purged++; return 7 }

type fakeSeen struct {
	count  int
	purged int
}

func (s *fakeSeen) Seen(string) (bool, error) { return false, nil }

func (s *fakeSeen) Mark(context.Context, *models.SeenRecord) error { return nil }

func (s *fakeSeen) PurgeExpired(context.Context) (int, error) {
	s.purged++
	return 12, nil
}

func (s *fakeSeen) Count() (int, error) { return s.count, nil }

func (s *fakeSeen) Close() error { return nil }

type fakeAnalyses struct {
	purged  int
	lastTTL time.Duration
}

func (a *fakeAnalyses) Get(string, time.Duration) (*models.Analysis, bool) { return nil, false }

func (a *fakeAnalyses) Put(*models.AnalysisCacheEntry) error { return nil }

func (a *fakeAnalyses) Purge(ttl time.Duration) (int, error) {
	a.purged++
	a.lastTTL = ttl
	return 2, nil
}

func (a *fakeAnalyses) Close() error { return nil }

type fakeCompactor struct{ runs int }

func (c *fakeCompactor) RunGC() int { c.runs++; return 1 }

type fakePoster struct{ admin []string }

func (p *fakePoster) Post(context.Context, *models.Alert) *models.PostResult {
	return &models.PostResult{OK: true, StatusCode: 200, Attempts: 1}
}

func (p *fakePoster) PostAdmin(_ context.Context, text string) error {
	p.admin = append(p.admin, text)
	return nil
}

type fakeCycles struct{ stats *models.CycleStats }

func (c *fakeCycles) LastStats() *models.CycleStats { return c.stats }

func newTestService(deps Deps) *Service {
	cfg := common.NewDefaultConfig()
	cfg.Alerts.AdminWebhookURL = ""
	return NewService(cfg, deps, arbor.NewLogger())
}

func TestStartTwiceFails(t *testing.T) {
	svc := newTestService(Deps{})
	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Error(t, svc.Start())
}

func TestStopIsIdempotent(t *testing.T) {
	svc := newTestService(Deps{})
	require.NoError(t, svc.Start())
	svc.Stop()
	svc.Stop()
}

func TestHeartbeatSpec(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    string
		enabled bool
	}{
		{name: "enabled", minutes: 45, want: "@every 45m", enabled: true},
		{name: "zero interval disables", minutes: 0},
		{name: "negative interval disables", minutes: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(Deps{})
			svc.cfg.Cycle.HeartbeatIntervalMn = tt.minutes

			spec, ok := svc.heartbeatSpec()
			assert.Equal(t, tt.enabled, ok)
			assert.Equal(t, tt.want, spec)
		})
	}
}

func TestResetDailySpend(t *testing.T) {
	costs := &fakeCosts{spent: 3.50}
	svc := newTestService(Deps{Costs: costs})

	svc.resetDailySpend()

	assert.Equal(t, 1, costs.resets)
}

func TestPurgeStoresCallsEachSurface(t *testing.T) {
	quotes := &fakeQuotes{}
	lexicon := &fakeLexicon{}
	seen := &fakeSeen{}
	analyses := &fakeAnalyses{}
	compactor := &fakeCompactor{}
	svc := newTestService(Deps{Quotes: quotes, Sentiment: lexicon, Seen: seen, Analyses: analyses, Store: compactor})
	svc.cfg.LLM.CacheTTLHrs = 24

	svc.purgeStores()

	assert.Equal(t, 1, quotes.purged)
	assert.Equal(t, 1, lexicon.purged)
	assert.Equal(t, 1, seen.purged)
	assert.Equal(t, 1, analyses.purged)
	assert.Equal(t, 24*time.Hour, analyses.lastTTL)
	assert.Equal(t, 1, compactor.runs)
}

func TestPurgeStoresToleratesMissingSurfaces(t *testing.T) {
	svc := newTestService(Deps{})
	svc.purgeStores()
}

func TestAnalysisTTLFallback(t *testing.T) {
	svc := newTestService(Deps{})
	svc.cfg.LLM.CacheTTLHrs = 0
	assert.Equal(t, 72*time.Hour, svc.analysisTTL())

	svc.cfg.LLM.CacheTTLHrs = 48
	assert.Equal(t, 48*time.Hour, svc.analysisTTL())
}

func TestHeartbeatText(t *testing.T) {
	stats := models.NewCycleStats("cyc_1", "regular")
	stats.Fetched = 12
	stats.AlertsSent = 3
	svc := newTestService(Deps{
		Costs:    &fakeCosts{spent: 1.25},
		Seen:     &fakeSeen{count: 42},
		Pipeline: &fakeCycles{stats: stats},
		Clock:    common.NewMarketClock(nil),
	})
	svc.startedAt = time.Now().Add(-90 * time.Minute)

	text := svc.heartbeatText()

	assert.Contains(t, text, "up 1h30m")
	assert.Contains(t, text, "fetched 12, sent 3, failed 0")
	assert.Contains(t, text, "$1.25")
	assert.Contains(t, text, "42 records")
}

func TestHeartbeatPostsToAdmin(t *testing.T) {
	poster := &fakePoster{}
	svc := newTestService(Deps{Poster: poster})
	svc.startedAt = time.Now()

	svc.heartbeat()

	require.Len(t, poster.admin, 1)
	assert.Contains(t, poster.admin[0], "Heartbeat")
}
