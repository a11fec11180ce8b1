package marketdata

import (
	"context"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const (
	rvolLookbackDays = 30
	rvolMinSessions  = 5
)

// AlpacaProvider serves snapshots, session VWAP and relative volume from the
// Alpaca market-data API. The SDK manages its own transport, so calls guard
// on ctx before dispatch rather than threading it through.
type AlpacaProvider struct {
	md      *alpacamd.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

var _ interfaces.MarketDataProvider = (*AlpacaProvider)(nil)

func NewAlpacaProvider(cfg common.ProviderConfig, logger arbor.ILogger) *AlpacaProvider {
	opts := alpacamd.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	return &AlpacaProvider{
		md:      alpacamd.NewClient(opts),
		limiter: perMinuteLimiter(cfg.PerMinute, 200),
		logger:  logger,
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

func (p *AlpacaProvider) BatchQuotes(ctx context.Context, tickers []string) (map[string]*models.PriceQuote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	snapshots, err := p.md.GetSnapshots(tickers, alpacamd.GetSnapshotRequest{})
	if err != nil {
		return nil, &common.TransientNetworkError{Op: "alpaca snapshots", Err: err}
	}

	quotes := make(map[string]*models.PriceQuote, len(snapshots))
	for symbol, snap := range snapshots {
		if snap == nil || snap.LatestTrade == nil || snap.LatestTrade.Price <= 0 {
			continue
		}
		quote := &models.PriceQuote{
			Ticker:   symbol,
			Price:    snap.LatestTrade.Price,
			AsOf:     snap.LatestTrade.Timestamp,
			Provider: p.Name(),
		}
		if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
			quote.ChangePct = (quote.Price - snap.PrevDailyBar.Close) / snap.PrevDailyBar.Close * 100
		}
		if snap.DailyBar != nil {
			quote.Volume = float64(snap.DailyBar.Volume)
		}
		quotes[symbol] = quote
	}
	return quotes, nil
}

func (p *AlpacaProvider) FloatShares(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "float"}
}

// RVOL compares today's running volume against the average of the trailing
// completed sessions.
func (p *AlpacaProvider) RVOL(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	bars, err := p.md.GetBars(ticker, alpacamd.GetBarsRequest{
		TimeFrame: alpacamd.OneDay,
		Start:     time.Now().AddDate(0, 0, -rvolLookbackDays),
	})
	if err != nil {
		return 0, &common.TransientNetworkError{Op: "alpaca bars", Err: err}
	}
	if len(bars) < rvolMinSessions+1 {
		return 0, &common.DataGapError{Ticker: ticker, Field: "rvol"}
	}

	today := bars[len(bars)-1]
	trailing := bars[:len(bars)-1]
	var sum float64
	for _, bar := range trailing {
		sum += float64(bar.Volume)
	}
	avg := sum / float64(len(trailing))
	if avg <= 0 || today.Volume == 0 {
		return 0, &common.DataGapError{Ticker: ticker, Field: "rvol"}
	}
	return float64(today.Volume) / avg, nil
}

func (p *AlpacaProvider) VWAP(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	snap, err := p.md.GetSnapshot(ticker, alpacamd.GetSnapshotRequest{})
	if err != nil {
		return 0, &common.TransientNetworkError{Op: "alpaca snapshot", Err: err}
	}
	if snap == nil || snap.DailyBar == nil || snap.DailyBar.VWAP <= 0 {
		return 0, &common.DataGapError{Ticker: ticker, Field: "vwap"}
	}
	return snap.DailyBar.VWAP, nil
}

func (p *AlpacaProvider) EarningsSurprise(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "earnings"}
}
