package llm

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Per-million-token price estimates for spend accounting. These only need to
// be the right order of magnitude; the thresholds are safety rails, not a
// billing reconciliation.
var tierRates = map[string]struct{ in, out float64 }{
	"simple": {in: 0.10, out: 0.40},
	"medium": {in: 0.30, out: 2.50},
	"top":    {in: 3.00, out: 15.00},
}

// estimatedOutputTokens is the assumed completion size per document.
const estimatedOutputTokens = 400

func estimateCost(class string, promptBytes, docs int) float64 {
	rates, ok := tierRates[class]
	if !ok {
		rates = tierRates["top"]
	}
	inTokens := float64(promptBytes) / 4
	outTokens := float64(estimatedOutputTokens * docs)
	return inTokens/1e6*rates.in + outTokens/1e6*rates.out
}

// costTracker accumulates the UTC-day USD spend, persists it across restarts
// and answers which tiers the thresholds have disabled. Crossing a threshold
// is logged once per day.
type costTracker struct {
	mu     sync.Mutex
	state  interfaces.StateStore
	logger arbor.ILogger

	warnUSD      float64
	critUSD      float64
	emergencyUSD float64

	day       string
	spent     float64
	calls     int
	cacheHits int
	warned    map[string]bool
}

func newCostTracker(cfg common.LLMConfig, state interfaces.StateStore, logger arbor.ILogger) *costTracker {
	t := &costTracker{
		state:        state,
		logger:       logger,
		warnUSD:      cfg.CostWarnUSD,
		critUSD:      cfg.CostCritUSD,
		emergencyUSD: cfg.CostEmergencyUSD,
		warned:       make(map[string]bool),
	}
	t.mu.Lock()
	t.rollLocked(utcDay(time.Now()))
	t.mu.Unlock()
	return t
}

func utcDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// rollLocked loads or resets state for the given UTC day. Callers hold mu.
func (t *costTracker) rollLocked(day string) {
	if t.day == day {
		return
	}
	t.day = day
	t.spent = 0
	t.calls = 0
	t.cacheHits = 0
	t.warned = make(map[string]bool)

	if t.state == nil {
		return
	}
	stored, err := t.state.GetCostDay(day)
	if err != nil {
		t.logger.Warn().Err(err).Str("day", day).Msg("Could not load cost day, starting from zero")
		return
	}
	if stored != nil {
		t.spent = stored.SpentUSD
		t.calls = stored.Calls
		t.cacheHits = stored.CacheHits
		for _, tier := range stored.TiersDisabled {
			t.warned[tier] = true
		}
	}
}

func (t *costTracker) Add(usd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(utcDay(time.Now()))
	t.spent += usd
	t.calls++
	t.checkThresholdsLocked()
	t.persistLocked()
}

func (t *costTracker) CacheHit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(utcDay(time.Now()))
	t.cacheHits++
}

func (t *costTracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(utcDay(time.Now()))
	return t.spent
}

// TierAllowed reports whether the day's spend still admits the tier. The
// most expensive models go first: top at warn, medium at crit, everything
// at emergency.
func (t *costTracker) TierAllowed(tier models.AnalysisTier) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(utcDay(time.Now()))

	switch {
	case t.emergencyUSD > 0 && t.spent >= t.emergencyUSD:
		return false
	case t.critUSD > 0 && t.spent >= t.critUSD:
		return modelClass(tier) == "simple"
	case t.warnUSD > 0 && t.spent >= t.warnUSD:
		return modelClass(tier) != "top"
	default:
		return true
	}
}

func (t *costTracker) DisabledTiers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(utcDay(time.Now()))

	switch {
	case t.emergencyUSD > 0 && t.spent >= t.emergencyUSD:
		return []string{"top", "medium", "simple"}
	case t.critUSD > 0 && t.spent >= t.critUSD:
		return []string{"top", "medium"}
	case t.warnUSD > 0 && t.spent >= t.warnUSD:
		return []string{"top"}
	default:
		return nil
	}
}

// Reset forces a roll to the given day; the scheduler calls it at UTC
// midnight so the disable flags clear even on an idle process.
func (t *costTracker) Reset(day string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollLocked(day)
}

func (t *costTracker) checkThresholdsLocked() {
	type mark struct {
		name  string
		limit float64
	}
	for _, m := range []mark{
		{"warn", t.warnUSD},
		{"crit", t.critUSD},
		{"emergency", t.emergencyUSD},
	} {
		if m.limit > 0 && t.spent >= m.limit && !t.warned[m.name] {
			t.warned[m.name] = true
			t.logger.Warn().
				Str("threshold", m.name).
				Float64("limit_usd", m.limit).
				Float64("spent_usd", t.spent).
				Msg("Daily LLM spend crossed threshold, disabling expensive tiers")
		}
	}
}

func (t *costTracker) persistLocked() {
	if t.state == nil {
		return
	}
	var disabled []string
	for name, hit := range t.warned {
		if hit {
			disabled = append(disabled, name)
		}
	}
	err := t.state.SaveCostDay(&models.CostDay{
		Day:           t.day,
		SpentUSD:      t.spent,
		Calls:         t.calls,
		CacheHits:     t.cacheHits,
		TiersDisabled: disabled,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.logger.Warn().Err(err).Msg("Could not persist daily LLM spend")
	}
}
