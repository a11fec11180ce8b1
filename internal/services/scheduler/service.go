// Package scheduler runs the background maintenance around the pipeline:
// the UTC-midnight LLM spend reset, hourly store purges and the optional
// operator heartbeat.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// costLedger is the slice of the LLM service the scheduler drives.
type costLedger interface {
	ResetDailyCost()
	SpentToday() float64
}

// quoteCache is the market-data purge surface.
type quoteCache interface {
	PurgeExpired() int
}

// lexiconCache is the sentiment purge surface.
type lexiconCache interface {
	Purge() int
}

// storeCompactor reclaims disk space after purges.
type storeCompactor interface {
	RunGC() int
}

// cycleSource exposes the most recent cycle for the heartbeat.
type cycleSource interface {
	LastStats() *models.CycleStats
}

// Deps collects the maintenance surfaces the scheduler drives. A nil
// field disables the tasks that need it.
type Deps struct {
	Costs     costLedger
	Quotes    quoteCache
	Sentiment lexiconCache
	Seen      interfaces.SeenStore
	Analyses  interfaces.AnalysisCache
	Store     storeCompactor
	Poster    interfaces.WebhookPoster
	Pipeline  cycleSource
	Clock     *common.MarketClock
}

// Service owns the cron schedule. All jobs run on UTC wall time so the
// spend reset lands on the cost tracker's day boundary.
type Service struct {
	cfg       *common.Config
	deps      Deps
	cron      *cron.Cron
	logger    arbor.ILogger
	startedAt time.Time
	running   bool
}

func NewService(cfg *common.Config, deps Deps, logger arbor.ILogger) *Service {
	return &Service{
		cfg:    cfg,
		deps:   deps,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// Start registers the maintenance jobs and begins the schedule.
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc("0 0 * * *", s.resetDailySpend); err != nil {
		return fmt.Errorf("failed to add spend reset job: %w", err)
	}
	// Purges run at minute 15 so the midnight spend reset gets the top
	// of the hour to itself.
	if _, err := s.cron.AddFunc("15 * * * *", s.purgeStores); err != nil {
		return fmt.Errorf("failed to add purge job: %w", err)
	}
	if spec, ok := s.heartbeatSpec(); ok {
		if _, err := s.cron.AddFunc(spec, s.heartbeat); err != nil {
			return fmt.Errorf("failed to add heartbeat job: %w", err)
		}
		s.logger.Info().Str("interval", spec).Msg("Heartbeat enabled")
	}

	s.startedAt = time.Now()
	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the schedule and waits briefly for any job in flight.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Maintenance job still running at shutdown")
	}
	s.running = false
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// heartbeatSpec returns the cron spec for the liveness notice, or false
// when the heartbeat is disabled. Delivery shares the admin channel's
// fallback to the primary webhook.
func (s *Service) heartbeatSpec() (string, bool) {
	minutes := s.cfg.Cycle.HeartbeatIntervalMn
	if minutes <= 0 {
		return "", false
	}
	return fmt.Sprintf("@every %dm", minutes), true
}

func (s *Service) resetDailySpend() {
	if s.deps.Costs == nil {
		return
	}
	spent := s.deps.Costs.SpentToday()
	s.deps.Costs.ResetDailyCost()
	s.logger.Info().Float64("spent_usd", spent).Msg("Daily LLM spend reset")
}

func (s *Service) purgeStores() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	event := s.logger.Info()
	if s.deps.Quotes != nil {
		event = event.Int("quotes", s.deps.Quotes.PurgeExpired())
	}
	if s.deps.Sentiment != nil {
		event = event.Int("sentiment", s.deps.Sentiment.Purge())
	}
	if s.deps.Seen != nil {
		removed, err := s.deps.Seen.PurgeExpired(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Seen store purge failed")
		} else {
			event = event.Int("seen", removed)
		}
	}
	if s.deps.Analyses != nil {
		removed, err := s.deps.Analyses.Purge(s.analysisTTL())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Analysis cache purge failed")
		} else {
			event = event.Int("analyses", removed)
		}
	}
	if s.deps.Store != nil {
		event = event.Int("gc_files", s.deps.Store.RunGC())
	}
	event.Msg("Expired records purged")
}

func (s *Service) analysisTTL() time.Duration {
	hours := s.cfg.LLM.CacheTTLHrs
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

func (s *Service) heartbeat() {
	if s.deps.Poster == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.deps.Poster.PostAdmin(ctx, s.heartbeatText()); err != nil {
		s.logger.Warn().Err(err).Msg("Heartbeat post failed")
		return
	}
	s.logger.Debug().Msg("Heartbeat posted")
}

// heartbeatText composes the one-line liveness summary from whichever
// surfaces are wired.
func (s *Service) heartbeatText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Heartbeat: up %s", time.Since(s.startedAt).Round(time.Minute))
	if s.deps.Clock != nil {
		fmt.Fprintf(&b, ", session %s", s.deps.Clock.Session())
	}
	if s.deps.Pipeline != nil {
		if stats := s.deps.Pipeline.LastStats(); stats != nil {
			fmt.Fprintf(&b, ". Last cycle: fetched %d, sent %d, failed %d",
				stats.Fetched, stats.AlertsSent, stats.AlertsFailed)
		}
	}
	if s.deps.Costs != nil {
		fmt.Fprintf(&b, ". LLM spend today $%.2f", s.deps.Costs.SpentToday())
	}
	if s.deps.Seen != nil {
		if count, err := s.deps.Seen.Count(); err == nil {
			fmt.Fprintf(&b, ". Seen store holds %d records", count)
		}
	}
	return b.String()
}
