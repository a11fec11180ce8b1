package sentiment

import (
	"context"
	"math"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// fullSignalMovePct is the intraday move treated as a saturated signal; a
// five percent swing on a sub-$10 name is a real reaction.
const fullSignalMovePct = 5.0

// earningsFullSurprise saturates the earnings signal at a 25% EPS beat or
// miss.
const earningsFullSurprise = 0.25

// MarketScorer derives sentiment from live market behavior: the
// post-publish price move inside the current session window and the most
// recent EPS surprise.
type MarketScorer struct {
	md     interfaces.MarketDataService
	clock  *common.MarketClock
	logger arbor.ILogger
}

func NewMarketScorer(md interfaces.MarketDataService, clock *common.MarketClock, logger arbor.ILogger) *MarketScorer {
	return &MarketScorer{md: md, clock: clock, logger: logger}
}

// PriceAction scores the item by the ticker's move within the session
// window covering its publication. Outside any session, or when the item
// predates the window, there is no signal.
func (s *MarketScorer) PriceAction(ctx context.Context, item *models.NewsItem, ticker string) *models.SentimentSignal {
	if s.md == nil || ticker == "" {
		return nil
	}
	if s.clock.Session() == common.SessionClosed {
		return nil
	}
	start, end := s.clock.SessionWindow(item.PublishedAt)
	if item.PublishedAt.Before(start) || item.PublishedAt.After(end) {
		return nil
	}

	quote, ok := s.md.BatchPrices(ctx, []string{ticker})[ticker]
	if !ok || quote == nil {
		return nil
	}

	score := quote.ChangePct / fullSignalMovePct
	score = clampSigned(score)

	// Larger moves are harder to fake; scale confidence with magnitude.
	confidence := 0.4 + 0.5*math.Abs(score)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return &models.SentimentSignal{Score: score, Confidence: confidence}
}

// EarningsSurprise scores the direction and size of the latest EPS
// surprise. Most items have none; a data gap is normal, not an error.
func (s *MarketScorer) EarningsSurprise(ctx context.Context, ticker string) *models.SentimentSignal {
	if s.md == nil || ticker == "" {
		return nil
	}

	surprise, err := s.md.GetEarningsSurprise(ctx, ticker)
	if err != nil {
		if !common.IsDataGap(err) {
			s.logger.Debug().Err(err).Str("ticker", ticker).Msg("Earnings surprise lookup failed")
		}
		return nil
	}

	score := clampSigned(surprise / earningsFullSurprise)
	return &models.SentimentSignal{Score: score, Confidence: 0.7}
}
