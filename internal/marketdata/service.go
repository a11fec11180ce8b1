// Package marketdata resolves price, float, relative-volume and VWAP lookups
// through a prioritized provider chain. Each provider carries its own rate
// budget; the chain wraps every provider in a circuit breaker and serves all
// results from per-field TTL caches so a cycle never pays for the same
// lookup twice.
package marketdata

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type managedProvider struct {
	provider interfaces.MarketDataProvider
	breaker  *circuitBreaker
}

type Service struct {
	chain []*managedProvider
	cache *ttlCache

	priceTTL      time.Duration
	floatTTL      time.Duration
	rvolTTL       time.Duration
	vwapTTL       time.Duration
	batchDeadline time.Duration

	logger arbor.ILogger
}

var _ interfaces.MarketDataService = (*Service)(nil)

// NewService builds the chain from the configured priority list. Providers
// without credentials are left out of the chain rather than failing calls at
// runtime.
func NewService(cfg *common.Config, logger arbor.ILogger) *Service {
	md := cfg.MarketData
	var providers []interfaces.MarketDataProvider
	for _, name := range md.Priority {
		switch name {
		case "fmp":
			if md.FMP.APIKey == "" {
				logger.Info().Str("provider", name).Msg("Market data provider has no API key, skipping")
				continue
			}
			providers = append(providers, NewFMPProvider(md.FMP, logger))
		case "alpaca":
			if md.Alpaca.APIKey == "" || md.Alpaca.APISecret == "" {
				logger.Info().Str("provider", name).Msg("Market data provider has no API key, skipping")
				continue
			}
			providers = append(providers, NewAlpacaProvider(md.Alpaca, logger))
		case "finnhub":
			if md.Finnhub.APIKey == "" {
				logger.Info().Str("provider", name).Msg("Market data provider has no API key, skipping")
				continue
			}
			providers = append(providers, NewFinnhubProvider(md.Finnhub, logger))
		default:
			logger.Warn().Str("provider", name).Msg("Unknown market data provider in priority list")
		}
	}
	if len(providers) == 0 {
		logger.Warn().Msg("No market data providers configured, lookups will return data gaps")
	}
	return newService(cfg, providers, logger)
}

func newService(cfg *common.Config, providers []interfaces.MarketDataProvider, logger arbor.ILogger) *Service {
	md := cfg.MarketData
	cooldown := time.Duration(md.BreakerCooldownM) * time.Minute
	chain := make([]*managedProvider, 0, len(providers))
	for _, p := range providers {
		chain = append(chain, &managedProvider{
			provider: p,
			breaker:  newCircuitBreaker(md.BreakerThreshold, cooldown),
		})
	}
	return &Service{
		chain:         chain,
		cache:         newTTLCache(),
		priceTTL:      ttlOrDefault(time.Duration(md.PriceTTLSec)*time.Second, time.Minute),
		floatTTL:      ttlOrDefault(time.Duration(md.FloatTTLHrs)*time.Hour, 24*time.Hour),
		rvolTTL:       ttlOrDefault(time.Duration(md.RVOLTTLMin)*time.Minute, 5*time.Minute),
		vwapTTL:       ttlOrDefault(time.Duration(md.VWAPTTLMin)*time.Minute, 5*time.Minute),
		batchDeadline: ttlOrDefault(time.Duration(md.BatchDeadlineSec)*time.Second, 10*time.Second),
		logger:        logger,
	}
}

// BatchPrices resolves quotes for all tickers within the batch deadline.
// Cached quotes are served first; the remainder walks the chain, each
// provider answering whatever the previous one could not. Tickers no
// provider could quote are absent from the result.
func (s *Service) BatchPrices(ctx context.Context, tickers []string) map[string]*models.PriceQuote {
	result := make(map[string]*models.PriceQuote, len(tickers))
	var misses []string
	seen := make(map[string]struct{}, len(tickers))
	for _, ticker := range tickers {
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		if quote, ok := s.cache.quote(cacheKey("price", ticker)); ok {
			result[ticker] = quote
			continue
		}
		misses = append(misses, ticker)
	}
	if len(misses) == 0 {
		return result
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.batchDeadline)
	defer cancel()

	for _, mp := range s.chain {
		if len(misses) == 0 {
			break
		}
		if batchCtx.Err() != nil {
			break
		}
		if !mp.breaker.Allow() {
			continue
		}

		quotes, err := mp.provider.BatchQuotes(batchCtx, misses)
		if err != nil {
			s.noteFailure(mp, err, "batch_quotes")
			continue
		}
		mp.breaker.Success()

		var remaining []string
		for _, ticker := range misses {
			if quote, ok := quotes[ticker]; ok && quote != nil {
				s.cache.putQuote(cacheKey("price", ticker), quote, s.priceTTL)
				result[ticker] = quote
			} else {
				remaining = append(remaining, ticker)
			}
		}
		misses = remaining
	}

	if len(misses) > 0 {
		s.logger.Warn().
			Int("unresolved", len(misses)).
			Int("requested", len(seen)).
			Msg("Batch price pass left tickers without quotes")
	}
	return result
}

func (s *Service) GetFloat(ctx context.Context, ticker string) (float64, error) {
	return s.getField(ctx, "float", ticker, s.floatTTL,
		func(p interfaces.MarketDataProvider) (float64, error) { return p.FloatShares(ctx, ticker) })
}

func (s *Service) GetRVOL(ctx context.Context, ticker string) (float64, error) {
	return s.getField(ctx, "rvol", ticker, s.rvolTTL,
		func(p interfaces.MarketDataProvider) (float64, error) { return p.RVOL(ctx, ticker) })
}

func (s *Service) GetVWAP(ctx context.Context, ticker string) (float64, error) {
	return s.getField(ctx, "vwap", ticker, s.vwapTTL,
		func(p interfaces.MarketDataProvider) (float64, error) { return p.VWAP(ctx, ticker) })
}

// GetEarningsSurprise shares the float TTL; surprises only move quarterly.
func (s *Service) GetEarningsSurprise(ctx context.Context, ticker string) (float64, error) {
	return s.getField(ctx, "earnings", ticker, s.floatTTL,
		func(p interfaces.MarketDataProvider) (float64, error) { return p.EarningsSurprise(ctx, ticker) })
}

func (s *Service) getField(ctx context.Context, field, ticker string, ttl time.Duration, fetch func(interfaces.MarketDataProvider) (float64, error)) (float64, error) {
	key := cacheKey(field, ticker)
	if v, ok := s.cache.value(key); ok {
		return v, nil
	}

	var gapErr error
	var lastErr error
	for _, mp := range s.chain {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !mp.breaker.Allow() {
			continue
		}

		v, err := fetch(mp.provider)
		if err == nil {
			mp.breaker.Success()
			s.cache.putValue(key, v, ttl)
			return v, nil
		}
		if common.IsDataGap(err) {
			// The provider answered; it simply has no such data.
			mp.breaker.Success()
			gapErr = err
			continue
		}
		s.noteFailure(mp, err, field)
		lastErr = err
	}

	if gapErr != nil {
		return 0, gapErr
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, &common.DataGapError{Ticker: ticker, Field: field}
}

// ProviderStates reports each provider's circuit state for health checks.
func (s *Service) ProviderStates() map[string]string {
	states := make(map[string]string, len(s.chain))
	for _, mp := range s.chain {
		states[mp.provider.Name()] = mp.breaker.State()
	}
	return states
}

// PurgeExpired drops stale cache entries; the scheduler runs it hourly.
func (s *Service) PurgeExpired() int {
	return s.cache.purge()
}

func (s *Service) noteFailure(mp *managedProvider, err error, op string) {
	mp.breaker.Failure()
	s.logger.Warn().
		Err(err).
		Str("provider", mp.provider.Name()).
		Str("op", op).
		Str("breaker", mp.breaker.State()).
		Msg("Market data provider call failed")
}

func ttlOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func providerTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// perMinuteLimiter sizes a token bucket from a per-minute request budget.
func perMinuteLimiter(perMinute, fallback int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = fallback
	}
	perSecond := float64(perMinute) / 60.0
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func quoteTime(unix int64) time.Time {
	if unix <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
