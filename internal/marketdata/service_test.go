package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

type fakeProvider struct {
	name string

	quotes    map[string]*models.PriceQuote
	quoteErr  error
	floatVal  float64
	floatErr  error
	rvolVal   float64
	rvolErr   error
	vwapVal   float64
	vwapErr   error
	earnVal   float64
	earnErr   error
	batchHits int
	floatHits int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) BatchQuotes(ctx context.Context, tickers []string) (map[string]*models.PriceQuote, error) {
	f.batchHits++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	out := make(map[string]*models.PriceQuote)
	for _, t := range tickers {
		if q, ok := f.quotes[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

func (f *fakeProvider) FloatShares(ctx context.Context, ticker string) (float64, error) {
	f.floatHits++
	return f.floatVal, f.floatErr
}

func (f *fakeProvider) RVOL(ctx context.Context, ticker string) (float64, error) {
	return f.rvolVal, f.rvolErr
}

func (f *fakeProvider) VWAP(ctx context.Context, ticker string) (float64, error) {
	return f.vwapVal, f.vwapErr
}

func (f *fakeProvider) EarningsSurprise(ctx context.Context, ticker string) (float64, error) {
	return f.earnVal, f.earnErr
}

func quoteFor(ticker string, price float64, provider string) *models.PriceQuote {
	return &models.PriceQuote{Ticker: ticker, Price: price, AsOf: time.Now(), Provider: provider}
}

func newChain(t *testing.T, providers ...interfaces.MarketDataProvider) *Service {
	t.Helper()
	return newService(common.NewDefaultConfig(), providers, arbor.NewLogger())
}

func TestGetFloatShortCircuitsOnFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "fmp", floatVal: 9_000_000}
	second := &fakeProvider{name: "finnhub", floatVal: 1}
	svc := newChain(t, first, second)

	v, err := svc.GetFloat(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if v != 9_000_000 {
		t.Errorf("float = %v, expected the first provider's value", v)
	}
	if second.floatHits != 0 {
		t.Error("the chain must stop at the first success")
	}
}

func TestGetFloatFallsThroughDataGap(t *testing.T) {
	first := &fakeProvider{name: "alpaca", floatErr: &common.DataGapError{Ticker: "ACME", Field: "float"}}
	second := &fakeProvider{name: "fmp", floatVal: 4_200_000}
	svc := newChain(t, first, second)

	v, err := svc.GetFloat(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if v != 4_200_000 {
		t.Errorf("float = %v, expected the second provider to answer", v)
	}
	if states := svc.ProviderStates(); states["alpaca"] != breakerClosed {
		t.Errorf("alpaca state = %s, a data gap is not a provider failure", states["alpaca"])
	}
}

func TestGetFloatCachesResult(t *testing.T) {
	provider := &fakeProvider{name: "fmp", floatVal: 7_700_000}
	svc := newChain(t, provider)

	if _, err := svc.GetFloat(context.Background(), "ACME"); err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if _, err := svc.GetFloat(context.Background(), "ACME"); err != nil {
		t.Fatalf("GetFloat: %v", err)
	}
	if provider.floatHits != 1 {
		t.Errorf("provider hits = %d, the second call must be served from cache", provider.floatHits)
	}
}

func TestRepeatedFailuresOpenBreaker(t *testing.T) {
	failing := &fakeProvider{name: "fmp", floatErr: &common.TransientNetworkError{Op: "fmp quote", StatusCode: 500}}
	backup := &fakeProvider{name: "finnhub", floatVal: 1_000_000}
	svc := newChain(t, failing, backup)

	for i := 0; i < 4; i++ {
		if _, err := svc.GetFloat(context.Background(), "ACME"); err != nil {
			t.Fatalf("GetFloat with a healthy backup: %v", err)
		}
		// Distinct tickers defeat the cache so every call walks the chain.
		svc.cache = newTTLCache()
	}

	if states := svc.ProviderStates(); states["fmp"] != breakerOpen {
		t.Errorf("fmp state = %s, expected open after three consecutive failures", states["fmp"])
	}
	if failing.floatHits != 3 {
		t.Errorf("failing provider hits = %d, the open circuit must skip it", failing.floatHits)
	}
}

func TestGetFieldAllGapsReturnsGap(t *testing.T) {
	svc := newChain(t,
		&fakeProvider{name: "fmp", vwapErr: &common.DataGapError{Ticker: "ACME", Field: "vwap"}},
		&fakeProvider{name: "finnhub", vwapErr: &common.DataGapError{Ticker: "ACME", Field: "vwap"}},
	)

	_, err := svc.GetVWAP(context.Background(), "ACME")
	if err == nil {
		t.Fatal("expected an error when no provider has the field")
	}
	if !common.IsDataGap(err) {
		t.Errorf("err = %v, expected a data gap", err)
	}
}

func TestBatchPricesSecondProviderFillsMisses(t *testing.T) {
	first := &fakeProvider{name: "fmp", quotes: map[string]*models.PriceQuote{
		"ACME": quoteFor("ACME", 4.25, "fmp"),
	}}
	second := &fakeProvider{name: "finnhub", quotes: map[string]*models.PriceQuote{
		"BETA": quoteFor("BETA", 1.10, "finnhub"),
	}}
	svc := newChain(t, first, second)

	quotes := svc.BatchPrices(context.Background(), []string{"ACME", "BETA", "GONE"})

	if len(quotes) != 2 {
		t.Fatalf("quotes = %d, expected 2", len(quotes))
	}
	if quotes["ACME"].Provider != "fmp" {
		t.Errorf("ACME provider = %s, expected fmp", quotes["ACME"].Provider)
	}
	if quotes["BETA"].Provider != "finnhub" {
		t.Errorf("BETA provider = %s, expected finnhub", quotes["BETA"].Provider)
	}
	if _, ok := quotes["GONE"]; ok {
		t.Error("unresolvable tickers must be absent, never zero-valued")
	}
}

func TestBatchPricesServedFromCache(t *testing.T) {
	provider := &fakeProvider{name: "fmp", quotes: map[string]*models.PriceQuote{
		"ACME": quoteFor("ACME", 4.25, "fmp"),
	}}
	svc := newChain(t, provider)

	svc.BatchPrices(context.Background(), []string{"ACME"})
	svc.BatchPrices(context.Background(), []string{"ACME"})

	if provider.batchHits != 1 {
		t.Errorf("batch hits = %d, the repeat must come from cache", provider.batchHits)
	}
}

func TestBatchPricesEmptyChain(t *testing.T) {
	svc := newChain(t)

	quotes := svc.BatchPrices(context.Background(), []string{"ACME"})
	if len(quotes) != 0 {
		t.Errorf("quotes = %d, expected none without providers", len(quotes))
	}
}

func TestPurgeExpiredDropsStaleEntries(t *testing.T) {
	svc := newChain(t)
	svc.cache.putValue(cacheKey("float", "OLD"), 1, -time.Second)
	svc.cache.putValue(cacheKey("float", "NEW"), 2, time.Hour)

	if removed := svc.PurgeExpired(); removed != 1 {
		t.Errorf("removed = %d, expected 1", removed)
	}
	if _, ok := svc.cache.value(cacheKey("float", "NEW")); !ok {
		t.Error("fresh entries must survive the purge")
	}
}
