package marketdata

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type fmpQuote struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	ChangesPercentage float64 `json:"changesPercentage"`
	Volume            float64 `json:"volume"`
	AvgVolume         float64 `json:"avgVolume"`
	Timestamp         int64   `json:"timestamp"`
}

type fmpSharesFloat struct {
	Symbol      string  `json:"symbol"`
	FloatShares float64 `json:"floatShares"`
	Outstanding float64 `json:"outstandingShares"`
}

type fmpEarningsSurprise struct {
	Date      string  `json:"date"`
	Symbol    string  `json:"symbol"`
	Actual    float64 `json:"actualEarningResult"`
	Estimated float64 `json:"estimatedEarning"`
}

// FMPProvider talks to Financial Modeling Prep. It carries the bulk quote
// endpoint the batch pass prefers; shares float lives on the v4 API so the
// provider derives that URL from the configured v3 base.
type FMPProvider struct {
	rest     *resty.Client
	floatURL string
	limiter  *rate.Limiter
	logger   arbor.ILogger
}

var _ interfaces.MarketDataProvider = (*FMPProvider)(nil)

func NewFMPProvider(cfg common.ProviderConfig, logger arbor.ILogger) *FMPProvider {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	rest := resty.New().
		SetBaseURL(base).
		SetTimeout(providerTimeout(cfg.TimeoutS)).
		SetQueryParam("apikey", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &FMPProvider{
		rest:     rest,
		floatURL: strings.Replace(base, "/api/v3", "/api/v4", 1) + "/shares_float",
		limiter:  perMinuteLimiter(cfg.PerMinute, 300),
		logger:   logger,
	}
}

func (p *FMPProvider) Name() string { return "fmp" }

func (p *FMPProvider) BatchQuotes(ctx context.Context, tickers []string) (map[string]*models.PriceQuote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload []fmpQuote
	resp, err := p.rest.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/quote/" + strings.Join(tickers, ","))
	if err := p.checkResponse(resp, err, "quote"); err != nil {
		return nil, err
	}

	quotes := make(map[string]*models.PriceQuote, len(payload))
	for _, q := range payload {
		if q.Symbol == "" || q.Price <= 0 {
			continue
		}
		asOf := time.Now().UTC()
		if q.Timestamp > 0 {
			asOf = time.Unix(q.Timestamp, 0).UTC()
		}
		quotes[q.Symbol] = &models.PriceQuote{
			Ticker:    q.Symbol,
			Price:     q.Price,
			ChangePct: q.ChangesPercentage,
			Volume:    q.Volume,
			AvgVolume: q.AvgVolume,
			AsOf:      asOf,
			Provider:  p.Name(),
		}
	}
	return quotes, nil
}

func (p *FMPProvider) FloatShares(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var payload []fmpSharesFloat
	resp, err := p.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetResult(&payload).
		Get(p.floatURL)
	if err := p.checkResponse(resp, err, "shares_float"); err != nil {
		return 0, err
	}

	for _, entry := range payload {
		if entry.FloatShares > 0 {
			return entry.FloatShares, nil
		}
		if entry.Outstanding > 0 {
			return entry.Outstanding, nil
		}
	}
	return 0, &common.DataGapError{Ticker: ticker, Field: "float"}
}

// RVOL derives the multiplier from the quote's running and trailing average
// volume rather than a separate endpoint.
func (p *FMPProvider) RVOL(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var payload []fmpQuote
	resp, err := p.rest.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/quote/" + ticker)
	if err := p.checkResponse(resp, err, "quote"); err != nil {
		return 0, err
	}

	for _, q := range payload {
		if q.AvgVolume > 0 && q.Volume > 0 {
			return q.Volume / q.AvgVolume, nil
		}
	}
	return 0, &common.DataGapError{Ticker: ticker, Field: "rvol"}
}

func (p *FMPProvider) VWAP(ctx context.Context, ticker string) (float64, error) {
	return 0, &common.DataGapError{Ticker: ticker, Field: "vwap"}
}

func (p *FMPProvider) EarningsSurprise(ctx context.Context, ticker string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var payload []fmpEarningsSurprise
	resp, err := p.rest.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/earnings-surprises/" + ticker)
	if err := p.checkResponse(resp, err, "earnings-surprises"); err != nil {
		return 0, err
	}

	// Newest first; take the most recent reported quarter.
	for _, entry := range payload {
		if entry.Estimated != 0 {
			return (entry.Actual - entry.Estimated) / abs(entry.Estimated), nil
		}
	}
	return 0, &common.DataGapError{Ticker: ticker, Field: "earnings"}
}

func (p *FMPProvider) checkResponse(resp *resty.Response, err error, endpoint string) error {
	if err != nil {
		return &common.TransientNetworkError{Op: "fmp " + endpoint, Err: err}
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return &common.RateLimitError{Provider: p.Name(), RetryAfter: retryAfter(resp)}
	}
	if resp.IsError() {
		return &common.TransientNetworkError{Op: "fmp " + endpoint, StatusCode: resp.StatusCode()}
	}
	return nil
}

func retryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
