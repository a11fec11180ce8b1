package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Cycle       CycleConfig      `toml:"cycle"`
	Feeds       FeedsConfig      `toml:"feeds"`
	Intake      IntakeConfig     `toml:"intake"`
	Dedup       DedupConfig      `toml:"dedup"`
	Resolver    ResolverConfig   `toml:"resolver"`
	Classify    ClassifyConfig   `toml:"classify"`
	Sentiment   SentimentConfig  `toml:"sentiment"`
	MarketData  MarketDataConfig `toml:"market_data"`
	Enrichment  EnrichmentConfig `toml:"enrichment"`
	LLM         LLMConfig        `toml:"llm"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gates       GatesConfig      `toml:"gates"`
	Alerts      AlertsConfig     `toml:"alerts"`
	Seen        SeenConfig       `toml:"seen"`
	Events      EventsConfig     `toml:"events"`
}

// ServerConfig configures the health HTTP endpoint
type ServerConfig struct {
	Port int    `toml:"port" validate:"min=0,max=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// CycleConfig controls the orchestrator cadence by market session
type CycleConfig struct {
	RegularSec          int `toml:"cycle_seconds_regular" validate:"min=1"` // Floor cadence when no session rule applies
	MarketOpenSec       int `toml:"market_open_cycle_sec" validate:"min=1"`
	ExtendedHoursSec    int `toml:"extended_hours_cycle_sec" validate:"min=1"`
	MarketClosedSec     int `toml:"market_closed_cycle_sec" validate:"min=1"`
	HeartbeatIntervalMn int `toml:"heartbeat_interval_min" validate:"min=0"` // 0 disables the heartbeat
}

// FeedSourceConfig describes one configured feed. Type is one of
// "rss", "vendor_json", "sec". Vendor field mapping lives in config so new
// vendors never require a code change.
type FeedSourceConfig struct {
	Name    string        `toml:"name" validate:"required"`
	Type    string        `toml:"type" validate:"required,oneof=rss vendor_json sec"`
	URL     string        `toml:"url" validate:"required"`
	Weight  int           `toml:"weight"` // Dedup tie-break preference, higher wins
	Mapping VendorMapping `toml:"mapping"`
}

// VendorMapping maps vendor JSON fields onto NewsItem fields. Keys are
// dot-separated paths into the decoded payload. ItemsKey selects the array of
// articles; an empty ItemsKey means the payload root is the array.
type VendorMapping struct {
	ItemsKey     string `toml:"items_key"`
	TitleKey     string `toml:"title_key"`
	SummaryKey   string `toml:"summary_key"`
	URLKey       string `toml:"url_key"`
	IDKey        string `toml:"id_key"`
	TimeKey      string `toml:"time_key"`
	TimeFormat   string `toml:"time_format"` // Go layout; empty means RFC3339
	TickersKey   string `toml:"tickers_key"`
	SentimentKey string `toml:"sentiment_key"` // Optional vendor-supplied polarity
}

type FeedsConfig struct {
	Sources   []FeedSourceConfig `toml:"sources"`
	UserAgent string             `toml:"user_agent"` // Sent on every feed request; SEC requires a contact address
}

type IntakeConfig struct {
	MaxArticleAgeMin   int     `toml:"max_article_age_minutes" validate:"min=1"`
	MaxSECFilingAgeMin int     `toml:"max_sec_filing_age_minutes" validate:"min=1"`
	FetchConcurrency   int     `toml:"fetch_concurrency" validate:"min=1"`
	FetchTimeoutSec    float64 `toml:"fetch_timeout_sec" validate:"gt=0"`
}

type DedupConfig struct {
	FuzzyThreshold float64 `toml:"fuzzy_threshold" validate:"gte=0,lte=1"` // Token-set similarity cutoff
}

type ResolverConfig struct {
	UniversePath  string   `toml:"universe_path"` // Newline-delimited symbol list; empty disables the cross-check
	Watchlist     []string `toml:"watchlist"`     // Symbols exempt from the crypto gate
	MinRelevance  int      `toml:"min_relevance" validate:"min=0,max=100"`
	MaxPrimary    int      `toml:"max_primary" validate:"min=1"`
	ScoreDiff     int      `toml:"score_diff_threshold" validate:"min=0"`
	DefaultSuffix string   `toml:"default_exchange"` // Exchange assumed for bare symbols
}

type ClassifyConfig struct {
	TaxonomyPath   string  `toml:"taxonomy_path"` // YAML category → phrase list
	WeightsPath    string  `toml:"weights_path"`  // YAML category → dynamic weight, reloaded each cycle
	BaselineWeight float64 `toml:"baseline_weight" validate:"gte=0,lte=1"`
}

// SentimentWeights blends the per-source signals; entries for absent sources
// are renormalized away at aggregation time.
type SentimentWeights struct {
	Earnings  float64 `toml:"earnings" validate:"gte=0"`
	ML        float64 `toml:"ml" validate:"gte=0"`
	Local     float64 `toml:"local" validate:"gte=0"`
	External  float64 `toml:"external" validate:"gte=0"`
	Premarket float64 `toml:"premarket" validate:"gte=0"`
}

type SentimentConfig struct {
	Weights        SentimentWeights `toml:"weights"`
	MLEndpoint     string           `toml:"ml_endpoint"` // FinBERT-style batch scorer; empty disables
	MLBatchSize    int              `toml:"ml_batch_size" validate:"min=1"`
	SourceTimeoutS float64          `toml:"source_timeout_sec" validate:"gt=0"`
	ExternalTTLHrs int              `toml:"external_cache_ttl_hours" validate:"min=1"`
}

// ProviderConfig holds one market-data vendor's connection settings
type ProviderConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"` // Alpaca only
	BaseURL   string `toml:"base_url"`
	PerMinute int    `toml:"requests_per_minute" validate:"min=1"`
	TimeoutS  int    `toml:"timeout_sec" validate:"min=1"`
}

type MarketDataConfig struct {
	Priority         []string       `toml:"priority"` // Provider order, e.g. ["fmp","alpaca","finnhub"]
	FMP              ProviderConfig `toml:"fmp"`
	Finnhub          ProviderConfig `toml:"finnhub"`
	Alpaca           ProviderConfig `toml:"alpaca"`
	PriceTTLSec      int            `toml:"price_ttl_sec" validate:"min=1"`
	FloatTTLHrs      int            `toml:"float_ttl_hours" validate:"min=1"`
	RVOLTTLMin       int            `toml:"rvol_ttl_min" validate:"min=1"`
	VWAPTTLMin       int            `toml:"vwap_ttl_min" validate:"min=1"`
	BatchDeadlineSec int            `toml:"batch_deadline_sec" validate:"min=1"`
	BreakerThreshold int            `toml:"breaker_threshold" validate:"min=1"` // Consecutive failures before trip
	BreakerCooldownM int            `toml:"breaker_cooldown_min" validate:"min=1"`
}

type EnrichmentConfig struct {
	FloatWorkers     int     `toml:"float_workers" validate:"min=1"`
	RVOLWorkers      int     `toml:"rvol_workers" validate:"min=1"`
	VWAPWorkers      int     `toml:"vwap_workers" validate:"min=1"`
	PerTickerTimeout int     `toml:"per_ticker_timeout_sec" validate:"min=1"`
	SoftDeadlineSec  float64 `toml:"soft_deadline_sec" validate:"gt=0"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig routes SEC-filing analysis across model tiers and caps daily spend
type LLMConfig struct {
	DefaultProvider  LLMProvider `toml:"default_provider"` // "gemini" or "claude"
	BatchSize        int         `toml:"llm_batch_size" validate:"min=1"`
	BatchTimeoutS    float64     `toml:"llm_batch_timeout_sec" validate:"gt=0"`
	CacheTTLHrs      int         `toml:"cache_ttl_hours" validate:"min=1"`
	CostWarnUSD      float64     `toml:"cost_warn" validate:"gte=0"`
	CostCritUSD      float64     `toml:"cost_crit" validate:"gte=0"`
	CostEmergencyUSD float64     `toml:"cost_emergency" validate:"gte=0"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string `toml:"api_key"`
	SimpleModel string `toml:"simple_model"` // Cheapest tier
	MediumModel string `toml:"medium_model"`
	TopModel    string `toml:"top_model"`
	RateLimit   string `toml:"rate_limit"` // Minimum spacing between calls, duration string
	Timeout     string `toml:"timeout"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string `toml:"api_key"`
	SimpleModel string `toml:"simple_model"`
	MediumModel string `toml:"medium_model"`
	TopModel    string `toml:"top_model"`
	MaxTokens   int    `toml:"max_tokens" validate:"min=1"`
	RateLimit   string `toml:"rate_limit"`
	Timeout     string `toml:"timeout"`
}

type GatesConfig struct {
	MinScore          float64  `toml:"min_score" validate:"gte=0,lte=10"`
	MinSentAbs        float64  `toml:"min_sent_abs" validate:"gte=0,lte=1"`
	PriceFloor        float64  `toml:"price_floor" validate:"gte=0"`
	PriceCeiling      float64  `toml:"price_ceiling" validate:"gte=0"` // 0 disables the ceiling
	CategoriesAllow   []string `toml:"categories_allow"`               // ["*"] allows every category
	SkipSources       []string `toml:"skip_sources"`
	AllowOTC          bool     `toml:"allow_otc"`
	IgnoreInstruments bool     `toml:"ignore_instrument_tickers"` // Drop warrants/rights/units
	MinAvgVolume      int64    `toml:"min_avg_volume" validate:"gte=0"`
}

type AlertsConfig struct {
	WebhookURL       string  `toml:"webhook_url"`
	AdminWebhookURL  string  `toml:"admin_webhook_url"` // Empty falls back to the primary webhook
	MaxPerCycle      int     `toml:"max_alerts_per_cycle" validate:"min=1"`
	JitterMs         int     `toml:"alerts_jitter_ms" validate:"gte=0,lte=1000"`
	KeyRateLimit     int     `toml:"alerts_key_rate_limit" validate:"gte=0"` // Posts per minute per (ticker,title,url); 0 disables
	EmptyCycleWarnN  int     `toml:"alert_consecutive_empty_cycles" validate:"min=1"`
	PostTimeoutSec   float64 `toml:"post_timeout_sec" validate:"gt=0"`
	TradePlanEnabled bool    `toml:"trade_plan_enabled"`
}

type SeenConfig struct {
	TTLDays int `toml:"seen_ttl_days" validate:"min=1"`
}

type EventsConfig struct {
	Path string `toml:"path"` // JSONL event log consumed by the outcome tracker
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in nuntius.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Cycle: CycleConfig{
			RegularSec:          30,
			MarketOpenSec:       60,
			ExtendedHoursSec:    90,
			MarketClosedSec:     180,
			HeartbeatIntervalMn: 60,
		},
		Feeds: FeedsConfig{
			Sources:   []FeedSourceConfig{},
			UserAgent: "nuntius/1.0 (+https://github.com/ternarybob/nuntius)",
		},
		Intake: IntakeConfig{
			MaxArticleAgeMin:   30,
			MaxSECFilingAgeMin: 240,
			FetchConcurrency:   10,
			FetchTimeoutSec:    8,
		},
		Dedup: DedupConfig{
			FuzzyThreshold: 0.80,
		},
		Resolver: ResolverConfig{
			MinRelevance:  40,
			MaxPrimary:    2,
			ScoreDiff:     30,
			DefaultSuffix: "US",
		},
		Classify: ClassifyConfig{
			TaxonomyPath:   "./config/keywords.yaml",
			WeightsPath:    "./config/weights.yaml",
			BaselineWeight: 0.50,
		},
		Sentiment: SentimentConfig{
			Weights: SentimentWeights{
				Earnings:  0.15,
				ML:        0.30,
				Local:     0.20,
				External:  0.20,
				Premarket: 0.15,
			},
			MLBatchSize:    10,
			SourceTimeoutS: 3,
			ExternalTTLHrs: 24,
		},
		MarketData: MarketDataConfig{
			Priority: []string{"fmp", "alpaca", "finnhub"},
			FMP: ProviderConfig{
				BaseURL:   "https://financialmodelingprep.com/api/v3",
				PerMinute: 300,
				TimeoutS:  5,
			},
			Finnhub: ProviderConfig{
				BaseURL:   "https://finnhub.io/api/v1",
				PerMinute: 60,
				TimeoutS:  5,
			},
			Alpaca: ProviderConfig{
				PerMinute: 200,
				TimeoutS:  5,
			},
			PriceTTLSec:      60,
			FloatTTLHrs:      24,
			RVOLTTLMin:       5,
			VWAPTTLMin:       5,
			BatchDeadlineSec: 10,
			BreakerThreshold: 3,
			BreakerCooldownM: 5,
		},
		Enrichment: EnrichmentConfig{
			FloatWorkers:     10,
			RVOLWorkers:      15,
			VWAPWorkers:      15,
			PerTickerTimeout: 30,
			SoftDeadlineSec:  2.0,
		},
		LLM: LLMConfig{
			DefaultProvider:  LLMProviderGemini,
			BatchSize:        5,
			BatchTimeoutS:    2.0,
			CacheTTLHrs:      72,
			CostWarnUSD:      5,
			CostCritUSD:      10,
			CostEmergencyUSD: 20,
		},
		Gemini: GeminiConfig{
			SimpleModel: "gemini-2.5-flash-lite",
			MediumModel: "gemini-2.5-flash",
			TopModel:    "gemini-2.5-pro",
			RateLimit:   "4s",
			Timeout:     "2m",
		},
		Claude: ClaudeConfig{
			SimpleModel: "claude-3-5-haiku-20241022",
			MediumModel: "claude-sonnet-4-20250514",
			TopModel:    "claude-opus-4-20250514",
			MaxTokens:   4096,
			RateLimit:   "1s",
			Timeout:     "2m",
		},
		Gates: GatesConfig{
			MinScore:          0,
			MinSentAbs:        0,
			PriceFloor:        0.10,
			PriceCeiling:      0, // Disabled; sub-$10 deployments set 10
			CategoriesAllow:   []string{"*"},
			SkipSources:       []string{},
			AllowOTC:          true,
			IgnoreInstruments: true,
			MinAvgVolume:      0,
		},
		Alerts: AlertsConfig{
			MaxPerCycle:     40,
			JitterMs:        0,
			KeyRateLimit:    0,
			EmptyCycleWarnN: 5,
			PostTimeoutSec:  10,
		},
		Seen: SeenConfig{
			TTLDays: 7,
		},
		Events: EventsConfig{
			Path: "./data/events.log",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NUNTIUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("NUNTIUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("NUNTIUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if badgerPath := os.Getenv("NUNTIUS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging
	if level := os.Getenv("NUNTIUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("NUNTIUS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Cycle cadence
	if v := os.Getenv("NUNTIUS_CYCLE_SECONDS_REGULAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Cycle.RegularSec = n
		}
	}
	if v := os.Getenv("NUNTIUS_MARKET_OPEN_CYCLE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Cycle.MarketOpenSec = n
		}
	}
	if v := os.Getenv("NUNTIUS_EXTENDED_HOURS_CYCLE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Cycle.ExtendedHoursSec = n
		}
	}
	if v := os.Getenv("NUNTIUS_MARKET_CLOSED_CYCLE_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Cycle.MarketClosedSec = n
		}
	}

	// Intake
	if v := os.Getenv("NUNTIUS_MAX_ARTICLE_AGE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Intake.MaxArticleAgeMin = n
		}
	}
	if v := os.Getenv("NUNTIUS_MAX_SEC_FILING_AGE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Intake.MaxSECFilingAgeMin = n
		}
	}

	// Gates
	if v := os.Getenv("NUNTIUS_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gates.MinScore = f
		}
	}
	if v := os.Getenv("NUNTIUS_MIN_SENT_ABS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gates.MinSentAbs = f
		}
	}
	if v := os.Getenv("NUNTIUS_PRICE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gates.PriceFloor = f
		}
	}
	if v := os.Getenv("NUNTIUS_PRICE_CEILING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gates.PriceCeiling = f
		}
	}
	if v := os.Getenv("NUNTIUS_ALLOW_OTC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Gates.AllowOTC = b
		}
	}
	if v := os.Getenv("NUNTIUS_SKIP_SOURCES"); v != "" {
		sources := []string{}
		for _, s := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				sources = append(sources, trimmed)
			}
		}
		config.Gates.SkipSources = sources
	}

	// Alerting
	if url := os.Getenv("NUNTIUS_WEBHOOK_URL"); url != "" {
		config.Alerts.WebhookURL = url
	}
	if url := os.Getenv("NUNTIUS_ADMIN_WEBHOOK_URL"); url != "" {
		config.Alerts.AdminWebhookURL = url
	}
	if v := os.Getenv("NUNTIUS_MAX_ALERTS_PER_CYCLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Alerts.MaxPerCycle = n
		}
	}
	if v := os.Getenv("NUNTIUS_ALERTS_JITTER_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Alerts.JitterMs = n
		}
	}

	// Seen store
	if v := os.Getenv("NUNTIUS_SEEN_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Seen.TTLDays = n
		}
	}

	// Market-data provider keys
	if key := os.Getenv("NUNTIUS_FMP_API_KEY"); key != "" {
		config.MarketData.FMP.APIKey = key
	} else if key := os.Getenv("FMP_API_KEY"); key != "" {
		config.MarketData.FMP.APIKey = key
	}
	if key := os.Getenv("NUNTIUS_FINNHUB_API_KEY"); key != "" {
		config.MarketData.Finnhub.APIKey = key
	} else if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		config.MarketData.Finnhub.APIKey = key
	}
	if key := os.Getenv("NUNTIUS_ALPACA_API_KEY"); key != "" {
		config.MarketData.Alpaca.APIKey = key
	} else if key := os.Getenv("APCA_API_KEY_ID"); key != "" {
		config.MarketData.Alpaca.APIKey = key
	}
	if secret := os.Getenv("NUNTIUS_ALPACA_API_SECRET"); secret != "" {
		config.MarketData.Alpaca.APISecret = secret
	} else if secret := os.Getenv("APCA_API_SECRET_KEY"); secret != "" {
		config.MarketData.Alpaca.APISecret = secret
	}

	// LLM provider keys; standard vendor vars are honored as fallbacks
	if key := os.Getenv("NUNTIUS_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("NUNTIUS_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if provider := os.Getenv("NUNTIUS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Sentiment
	if endpoint := os.Getenv("NUNTIUS_ML_ENDPOINT"); endpoint != "" {
		config.Sentiment.MLEndpoint = endpoint
	}

	// Events log
	if path := os.Getenv("NUNTIUS_EVENTS_PATH"); path != "" {
		config.Events.Path = path
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, webhookURL string, once bool) {
	if port > 0 {
		config.Server.Port = port
	}
	if webhookURL != "" {
		config.Alerts.WebhookURL = webhookURL
	}
	_ = once // consumed by main; kept here so the override surface is documented in one place
}

// Validate checks the configuration for structural errors. A failure here is
// fatal at startup.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return &ConfigError{Field: firstValidationField(err), Err: err}
	}

	if c.Alerts.WebhookURL == "" {
		return &ConfigError{Field: "alerts.webhook_url", Err: fmt.Errorf("webhook URL is required")}
	}
	if c.Gates.PriceCeiling > 0 && c.Gates.PriceCeiling < c.Gates.PriceFloor {
		return &ConfigError{Field: "gates.price_ceiling", Err: fmt.Errorf("price ceiling %.2f below floor %.2f", c.Gates.PriceCeiling, c.Gates.PriceFloor)}
	}
	if !(c.LLM.CostWarnUSD <= c.LLM.CostCritUSD && c.LLM.CostCritUSD <= c.LLM.CostEmergencyUSD) {
		return &ConfigError{Field: "llm.cost_warn", Err: fmt.Errorf("cost thresholds must be ordered warn <= crit <= emergency")}
	}
	for i, src := range c.Feeds.Sources {
		if src.Type == "vendor_json" && src.Mapping.TitleKey == "" {
			return &ConfigError{Field: fmt.Sprintf("feeds.sources[%d].mapping.title_key", i), Err: fmt.Errorf("vendor_json source %q requires a field mapping", src.Name)}
		}
	}
	return nil
}

func firstValidationField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Namespace()
	}
	return ""
}

// FetchTimeout returns the per-request feed timeout as a duration
func (c *IntakeConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec * float64(time.Second))
}

// MaxAgeFor returns the intake freshness bound for the given source name.
// SEC-prefixed sources get the longer filing window.
func (c *IntakeConfig) MaxAgeFor(source string) time.Duration {
	if strings.HasPrefix(source, "sec_") {
		return time.Duration(c.MaxSECFilingAgeMin) * time.Minute
	}
	return time.Duration(c.MaxArticleAgeMin) * time.Minute
}

// SourceWeight returns the configured dedup weight for a source, zero when the
// source is not configured.
func (c *FeedsConfig) SourceWeight(name string) int {
	for _, src := range c.Sources {
		if src.Name == name {
			return src.Weight
		}
	}
	return 0
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
