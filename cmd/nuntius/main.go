package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/app"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/server"
)

// configPaths allows multiple -config flags; later files override earlier
// ones.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Health server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Health server port (shorthand, overrides config)")
	webhookURL   = flag.String("webhook", "", "Alert webhook URL (overrides config)")
	runOnce      = flag.Bool("once", false, "Run a single cycle and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Nuntius version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// A local .env is optional; NUNTIUS_* values from it feed the env
	// override pass during config load.
	_ = godotenv.Load()

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Startup order: config (defaults -> files -> env), flag overrides,
	// logger, banner.
	if len(configFiles) == 0 {
		if _, err := os.Stat("nuntius.toml"); err == nil {
			configFiles = append(configFiles, "nuntius.toml")
		} else if _, err := os.Stat("deployments/local/nuntius.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/nuntius.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *webhookURL, *runOnce)

	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler("")
	common.SetDefaultExchange(config.Resolver.DefaultSuffix)

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Int("port", config.Server.Port).
		Msg("Configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if *runOnce {
		stats := application.Orchestrator.RunOnce(context.Background())
		logger.Info().
			Int("alerts_sent", stats.AlertsSent).
			Int("alerts_failed", stats.AlertsFailed).
			Msg("Single cycle finished")
		return
	}

	srv := server.New(config, application.Health(), logger)
	go func() {
		defer common.RecoverWithCrashFile()
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Health server failed")
		}
	}()

	if err := application.Scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start maintenance scheduler")
	}

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		defer common.RecoverWithCrashFile()
		application.Orchestrator.Run(pipelineCtx)
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Nuntius running - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt received, shutting down")

	// Let the in-flight cycle finish before anything closes under it.
	stopPipeline()
	select {
	case <-pipelineDone:
	case <-time.After(90 * time.Second):
		logger.Warn().Msg("Cycle still running after 90s, closing anyway")
	}

	application.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Health server shutdown failed")
	}

	logger.Info().Msg("Nuntius stopped")
}
