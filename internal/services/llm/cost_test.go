package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

// fakeStateStore keeps cost days in memory; the feed-state and deferred
// methods exist only to satisfy the interface.
type fakeStateStore struct {
	days map[string]*models.CostDay
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{days: make(map[string]*models.CostDay)}
}

func (f *fakeStateStore) GetFeedState(string) (*models.FeedState, error) { return nil, nil }
func (f *fakeStateStore) SaveFeedState(*models.FeedState) error          { return nil }
func (f *fakeStateStore) SaveDeferred([]*models.DeferredItem) error      { return nil }
func (f *fakeStateStore) TakeDeferred() ([]*models.DeferredItem, error)  { return nil, nil }
func (f *fakeStateStore) Close() error                                   { return nil }

func (f *fakeStateStore) GetCostDay(day string) (*models.CostDay, error) {
	return f.days[day], nil
}

func (f *fakeStateStore) SaveCostDay(cost *models.CostDay) error {
	f.days[cost.Day] = cost
	return nil
}

func newTestTracker(t *testing.T, state *fakeStateStore) *costTracker {
	t.Helper()
	cfg := common.NewDefaultConfig().LLM
	return newCostTracker(cfg, state, arbor.NewLogger())
}

func TestEstimateCostScalesWithClass(t *testing.T) {
	simple := estimateCost("simple", 40_000, 5)
	top := estimateCost("top", 40_000, 5)
	assert.Greater(t, top, simple)
	assert.Greater(t, simple, 0.0)

	// Unknown classes price as top so a routing bug can't underbill.
	assert.Equal(t, top, estimateCost("unknown", 40_000, 5))
}

func TestTierAllowedProgressiveDisable(t *testing.T) {
	tr := newTestTracker(t, newFakeStateStore())

	assert.True(t, tr.TierAllowed(models.TierSimple))
	assert.True(t, tr.TierAllowed(models.TierMedium))
	assert.True(t, tr.TierAllowed(models.TierCritical))
	assert.Nil(t, tr.DisabledTiers())

	// Warn threshold shuts off the top class only.
	tr.Add(5.50)
	assert.True(t, tr.TierAllowed(models.TierSimple))
	assert.True(t, tr.TierAllowed(models.TierMedium))
	assert.False(t, tr.TierAllowed(models.TierComplex))
	assert.False(t, tr.TierAllowed(models.TierCritical))
	assert.Equal(t, []string{"top"}, tr.DisabledTiers())

	// Crit adds the medium class.
	tr.Add(5.00)
	assert.True(t, tr.TierAllowed(models.TierSimple))
	assert.False(t, tr.TierAllowed(models.TierMedium))
	assert.Equal(t, []string{"top", "medium"}, tr.DisabledTiers())

	// Emergency stops everything.
	tr.Add(10.00)
	assert.False(t, tr.TierAllowed(models.TierSimple))
	assert.Equal(t, []string{"top", "medium", "simple"}, tr.DisabledTiers())
}

func TestCostPersistsAcrossRestart(t *testing.T) {
	state := newFakeStateStore()

	first := newTestTracker(t, state)
	first.Add(3.25)
	first.Add(1.50)
	first.CacheHit()

	second := newTestTracker(t, state)
	assert.InDelta(t, 4.75, second.Spent(), 1e-9)

	day := state.days[utcDay(time.Now())]
	require.NotNil(t, day)
	assert.Equal(t, 2, day.Calls)
}

func TestResetClearsSpendAndTiers(t *testing.T) {
	tr := newTestTracker(t, newFakeStateStore())
	tr.Add(25.00)
	require.False(t, tr.TierAllowed(models.TierSimple))

	tr.Reset("2026-01-02")
	assert.Zero(t, tr.Spent())
	assert.True(t, tr.TierAllowed(models.TierCritical))
	assert.Nil(t, tr.DisabledTiers())
}

func TestCostTrackerWithoutStateStore(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM
	tr := newCostTracker(cfg, nil, arbor.NewLogger())
	tr.Add(1.00)
	assert.InDelta(t, 1.00, tr.Spent(), 1e-9)
}
