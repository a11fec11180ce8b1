package marketdata

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Finnhub has no bulk quote endpoint, so batch requests fan out per ticker
// under this concurrency cap.
const finnhubBatchConcurrency = 10

type finnhubQuote struct {
	Current   float64 `json:"c"`
	Change    float64 `json:"d"`
	ChangePct float64 `json:"dp"`
	PrevClose float64 `json:"pc"`
	Timestamp int64   `json:"t"`
}

type finnhubEarnings struct {
	Actual   float64 `json:"actual"`
	Estimate float64 `json:"estimate"`
	Period   string  `json:"period"`
	Symbol   string  `json:"symbol"`
}

type finnhubNewsSentiment struct {
	CompanyNewsScore float64 `json:"companyNewsScore"`
	Sentiment        struct {
		BearishPercent float64 `json:"bearishPercent"`
		BullishPercent float64 `json:"bullishPercent"`
	} `json:"sentiment"`
}

// FinnhubProvider is the tail of the default chain. Besides quotes and
// earnings it exposes Finnhub's ticker-level news sentiment, which the
// sentiment aggregator consumes as its external vendor source.
type FinnhubProvider struct {
	rest    *resty.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

var _ interfaces.MarketDataProvider = (*FinnhubProvider)(nil)

func NewFinnhubProvider(cfg common.ProviderConfig, logger arbor.ILogger) *FinnhubProvider {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(providerTimeout(cfg.TimeoutS)).
		SetQueryParam("token", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &FinnhubProvider{
		rest:    rest,
		limiter: perMinuteLimiter(cfg.PerMinute, 60),
		logger:  logger,
	}
}

func (p *FinnhubProvider) Name() string { return "finnhub" }

func (p *FinnhubProvider) BatchQuotes(ctx context.Context, tickers []string) (map[string]*models.PriceQuote, error) {
	quotes := make(map[string]*models.PriceQuote, len(tickers))
	sem := make(chan struct{}, finnhubBatchConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, ticker := range tickers {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		ticker := ticker
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			quote, err := p.quote(ctx, ticker)
			if err != nil {
				if !common.IsDataGap(err) && ctx.Err() == nil {
					p.logger.Debug().Err(err).Str("ticker", ticker).Msg("Finnhub quote failed")
				}
				return
			}
			mu.Lock()
			quotes[ticker] = quote
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(quotes) == 0 && len(tickers) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &common.TransientNetworkError{Op: "finnhub quote batch"}
	}
	return quotes, nil
}

func (p *FinnhubProvider) quote(ctx context.Context, ticker string) (*models.PriceQuote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload finnhubQuote
	resp, err := p.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetResult(&payload).
		Get("/quote")
	if err := p.checkResponse(resp, err, "quote"); err != nil {
		return nil, err
	}

	// Finnhub answers unknown symbols with an all-zero body.
	if payload.Current <= 0 {
		return nil, &common.DataGapError{Ticker: ticker, Field: "price"}
	}
	return &models.PriceQuote{
		Ticker:    ticker,
		Price:     payload.Current,
		ChangePct: payload.ChangePct,
		AsOf:      quoteTime(payload.Timestamp),
		Provider:  p.Name(),
	}, nil
}

func (p *FinnhubProvider) FloatShares(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "float"}
}

func (p *FinnhubProvider) RVOL(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "rvol"}
}

func (p *FinnhubProvider) VWAP(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "vwap"}
}

func (p *FinnhubProvider) EarningsSurprise(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var payload []finnhubEarnings
	resp, err := p.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetResult(&payload).
		Get("/stock/earnings")
	if err := p.checkResponse(resp, err, "stock/earnings"); err != nil {
		return 0, err
	}

	for _, entry := range payload {
		if entry.Estimate != 0 {
			return (entry.Actual - entry.Estimate) / abs(entry.Estimate), nil
		}
	}
	return 0, &common.DataGapError{Ticker: ticker, Field: "earnings"}
}

// NewsSentiment returns Finnhub's aggregate news read for a ticker as the
// bullish-bearish spread in [-1, 1].
func (p *FinnhubProvider) NewsSentiment(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var payload finnhubNewsSentiment
	resp, err := p.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetResult(&payload).
		Get("/news-sentiment")
	if err := p.checkResponse(resp, err, "news-sentiment"); err != nil {
		return 0, err
	}

	bullish := payload.Sentiment.BullishPercent
	bearish := payload.Sentiment.BearishPercent
	if bullish == 0 && bearish == 0 && payload.CompanyNewsScore == 0 {
		return 0, &common.DataGapError{Ticker: ticker, Field: "news_sentiment"}
	}
	return bullish - bearish, nil
}

func (p *FinnhubProvider) checkResponse(resp *resty.Response, err error, endpoint string) error {
	if err != nil {
		return &common.TransientNetworkError{Op: "finnhub " + endpoint, Err: err}
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return &common.RateLimitError{Provider: p.Name(), RetryAfter: retryAfter(resp)}
	}
	if resp.IsError() {
		return &common.TransientNetworkError{Op: "finnhub " + endpoint, StatusCode: resp.StatusCode()}
	}
	return nil
}
