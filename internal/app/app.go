// Package app wires the pipeline together: storage, feed intake, the
// scoring services, alert delivery, the health surface and the
// background maintenance schedule.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/feeds"
	"github.com/ternarybob/nuntius/internal/marketdata"
	"github.com/ternarybob/nuntius/internal/pipeline"
	"github.com/ternarybob/nuntius/internal/server"
	"github.com/ternarybob/nuntius/internal/services/alerts"
	"github.com/ternarybob/nuntius/internal/services/classify"
	"github.com/ternarybob/nuntius/internal/services/dedup"
	"github.com/ternarybob/nuntius/internal/services/enrich"
	"github.com/ternarybob/nuntius/internal/services/events"
	"github.com/ternarybob/nuntius/internal/services/llm"
	"github.com/ternarybob/nuntius/internal/services/resolver"
	"github.com/ternarybob/nuntius/internal/services/scheduler"
	"github.com/ternarybob/nuntius/internal/services/sentiment"
	"github.com/ternarybob/nuntius/internal/storage"
	"github.com/ternarybob/nuntius/internal/storage/badger"
)

// App holds every component for one process. Construction happens in
// dependency order; Close releases in reverse.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage *badger.Manager
	Clock   *common.MarketClock

	Fetcher    *feeds.Fetcher
	Dedup      *dedup.Service
	Resolver   *resolver.Service
	Classifier *classify.Service
	Sentiment  *sentiment.Service
	LLM        *llm.Service
	MarketData *marketdata.Service
	Enricher   *enrich.Service
	Formatter  *alerts.Formatter
	Poster     *alerts.Poster
	Events     *events.Writer

	Orchestrator *pipeline.Orchestrator
	Scheduler    *scheduler.Service
}

func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		Clock:  common.NewMarketClock(nil),
	}

	store, err := storage.NewManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.Storage = store

	client := feeds.NewClient(cfg, store.StateStore(), logger)
	app.Fetcher = feeds.NewFetcher(cfg, feeds.BuildSources(cfg, client, logger), logger)
	app.Dedup = dedup.NewService(cfg, logger)

	app.Resolver, err = resolver.NewService(cfg, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build resolver: %w", err)
	}
	app.Classifier, err = classify.NewService(cfg, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	app.MarketData = marketdata.NewService(cfg, logger)
	app.Sentiment = sentiment.NewService(cfg, app.MarketData, app.Clock, vendorSentiment(cfg, logger), logger)
	app.Enricher = enrich.NewService(cfg, app.MarketData, logger)

	app.LLM, err = llm.NewService(cfg, store.AnalysisCache(), store.StateStore(), logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build llm service: %w", err)
	}

	app.Formatter = alerts.NewFormatter(cfg.Alerts)
	app.Poster = alerts.NewPoster(cfg.Alerts, logger)

	app.Events, err = events.NewWriter(cfg.Events, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	app.Orchestrator = pipeline.New(cfg, pipeline.Deps{
		Fetcher:    app.Fetcher,
		Dedup:      app.Dedup,
		Resolver:   app.Resolver,
		Classifier: app.Classifier,
		Sentiment:  app.Sentiment,
		LLM:        app.LLM,
		MarketData: app.MarketData,
		Enricher:   app.Enricher,
		Formatter:  app.Formatter,
		Poster:     app.Poster,
		Events:     app.Events,
		Seen:       store.SeenStore(),
		State:      store.StateStore(),
		Clock:      app.Clock,
	}, logger)

	app.Scheduler = scheduler.NewService(cfg, scheduler.Deps{
		Costs:     app.LLM,
		Quotes:    app.MarketData,
		Sentiment: app.Sentiment,
		Seen:      store.SeenStore(),
		Analyses:  store.AnalysisCache(),
		Store:     store,
		Poster:    app.Poster,
		Pipeline:  app.Orchestrator,
		Clock:     app.Clock,
	}, logger)

	logger.Info().
		Int("feed_sources", len(app.Fetcher.Sources())).
		Str("environment", cfg.Environment).
		Msg("Application initialized")

	return app, nil
}

// vendorSentiment returns the ticker-level sentiment source, or nil when
// finnhub has no API key.
func vendorSentiment(cfg *common.Config, logger arbor.ILogger) sentiment.TickerSentimentSource {
	if cfg.MarketData.Finnhub.APIKey == "" {
		return nil
	}
	return marketdata.NewFinnhubProvider(cfg.MarketData.Finnhub, logger)
}

// Health assembles the read-only surfaces for the status endpoint.
func (a *App) Health() server.Health {
	return server.Health{
		Pipeline: a.Orchestrator,
		Costs:    a.LLM,
		Market:   a.MarketData,
		Seen:     a.Storage.SeenStore(),
		Clock:    a.Clock,
	}
}

// Close releases components in reverse construction order. Storage goes
// last so every earlier flush still has a database to write to.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event log")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
