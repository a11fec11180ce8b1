package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

// cycleSource exposes the most recent pipeline cycle.
type cycleSource interface {
	LastStats() *models.CycleStats
}

// spendSource exposes the LLM budget position.
type spendSource interface {
	SpentToday() float64
	DisabledTiers() []string
}

// providerSource reports market-data circuit states by provider name.
type providerSource interface {
	ProviderStates() map[string]string
}

// recordCounter reports the live seen-store size.
type recordCounter interface {
	Count() (int, error)
}

// Health collects the read-only surfaces the status snapshot draws
// from. A nil field leaves its section empty.
type Health struct {
	Pipeline cycleSource
	Costs    spendSource
	Market   providerSource
	Seen     recordCounter
	Clock    *common.MarketClock
}

// statusSnapshot is the /health/detailed response body.
type statusSnapshot struct {
	Status          string             `json:"status"`
	Version         string             `json:"version"`
	Environment     string             `json:"environment"`
	UptimeSec       int64              `json:"uptime_seconds"`
	MarketSession   string             `json:"market_session,omitempty"`
	LastCycle       *models.CycleStats `json:"last_cycle,omitempty"`
	MarketProviders map[string]string  `json:"market_providers,omitempty"`
	LLMSpentUSD     float64            `json:"llm_spent_usd"`
	LLMDisabled     []string           `json:"llm_disabled_tiers,omitempty"`
	SeenRecords     int                `json:"seen_records"`
}

type healthHandler struct {
	cfg       *common.Config
	health    Health
	startedAt time.Time
}

func newHealthHandler(cfg *common.Config, health Health) *healthHandler {
	return &healthHandler{cfg: cfg, health: health, startedAt: time.Now()}
}

func (h *healthHandler) ping(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func (h *healthHandler) detailed(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *healthHandler) snapshot() *statusSnapshot {
	snap := &statusSnapshot{
		Status:      "ok",
		Version:     common.GetVersion(),
		Environment: h.cfg.Environment,
		UptimeSec:   int64(time.Since(h.startedAt).Seconds()),
	}
	if h.health.Clock != nil {
		snap.MarketSession = string(h.health.Clock.Session())
	}
	if h.health.Pipeline != nil {
		snap.LastCycle = h.health.Pipeline.LastStats()
	}
	if h.health.Market != nil {
		snap.MarketProviders = h.health.Market.ProviderStates()
	}
	if h.health.Costs != nil {
		snap.LLMSpentUSD = h.health.Costs.SpentToday()
		snap.LLMDisabled = h.health.Costs.DisabledTiers()
	}
	if h.health.Seen != nil {
		if count, err := h.health.Seen.Count(); err == nil {
			snap.SeenRecords = count
		}
	}
	return snap
}

// requireMethod writes a 405 and returns false when the method differs.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
