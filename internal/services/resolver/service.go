// Package resolver attributes news items to tradable tickers and scores
// how central each ticker is to the story.
package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Relevance weighting: a ticker named in the title (or placed first by the
// vendor) carries most of the score, early-summary placement the rest, with
// a small per-mention bump capped at five mentions.
const (
	titleWeight     = 50
	firstParaWeight = 30
	mentionWeight   = 4
	mentionCap      = 5

	// firstParagraphBytes approximates the first paragraph; feed
	// normalization has already collapsed real paragraph breaks.
	firstParagraphBytes = 300
)

// Rank sentinels order same-score candidates: in-title position first,
// then vendor list order, then the rest.
const (
	rankCarried = 1 << 16
	rankAbsent  = 1 << 17
)

// Service resolves and ranks ticker attribution for news items.
type Service struct {
	universe     map[string]bool
	watch        map[string]bool
	minRelevance int
	maxPrimary   int
	scoreDiff    int
	logger       arbor.ILogger
}

var _ interfaces.ResolverService = (*Service)(nil)

// NewService loads the ticker universe and watchlist from configuration.
func NewService(cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	universe, err := loadUniverse(cfg.Resolver.UniversePath)
	if err != nil {
		return nil, fmt.Errorf("loading ticker universe: %w", err)
	}

	watch := make(map[string]bool, len(cfg.Resolver.Watchlist))
	for _, symbol := range cfg.Resolver.Watchlist {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol != "" {
			watch[symbol] = true
		}
	}

	svc := &Service{
		universe:     universe,
		watch:        watch,
		minRelevance: cfg.Resolver.MinRelevance,
		maxPrimary:   cfg.Resolver.MaxPrimary,
		scoreDiff:    cfg.Resolver.ScoreDiff,
		logger:       logger,
	}
	if svc.maxPrimary <= 0 {
		svc.maxPrimary = 2
	}
	if universe != nil {
		logger.Info().
			Int("symbols", len(universe)).
			Str("path", cfg.Resolver.UniversePath).
			Msg("Ticker universe loaded")
	}
	return svc, nil
}

// Resolve validates the item's carried tickers, or extracts candidates
// from the text when none survive, then scores and ranks them. The
// returned map holds every valid candidate with its score, including those
// below the relevance cutoff, so callers can tell weak attribution from
// none at all.
func (s *Service) Resolve(item *models.NewsItem) ([]string, map[string]int) {
	carriedIndex := make(map[string]int)
	var candidates []string

	for _, raw := range item.Tickers {
		ticker := common.ParseTicker(raw)
		if !ticker.Valid() {
			s.logger.Debug().
				Str("ticker", raw).
				Str("source", item.Source).
				Msg("Dropping malformed ticker")
			continue
		}
		if s.universe != nil && !s.universe[ticker.Code] && !s.watch[ticker.Code] {
			s.logger.Debug().Str("ticker", ticker.Code).Msg("Carried ticker not in universe")
			continue
		}
		if _, ok := carriedIndex[ticker.Code]; !ok {
			carriedIndex[ticker.Code] = len(candidates)
			candidates = append(candidates, ticker.Code)
		}
	}

	if len(candidates) == 0 {
		candidates = s.extractCandidates(item.Title, item.Summary)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	type ranked struct {
		symbol string
		score  int
		rank   int
	}
	relevance := make(map[string]int, len(candidates))
	list := make([]ranked, 0, len(candidates))
	for _, symbol := range candidates {
		index, carried := carriedIndex[symbol]
		if !carried {
			index = -1
		}
		score, rank := scoreTicker(symbol, item.Title, item.Summary, index)
		relevance[symbol] = score
		list = append(list, ranked{symbol: symbol, score: score, rank: rank})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		if list[i].rank != list[j].rank {
			return list[i].rank < list[j].rank
		}
		return list[i].symbol < list[j].symbol
	})

	var eligible []ranked
	for _, candidate := range list {
		if candidate.score >= s.minRelevance {
			eligible = append(eligible, candidate)
		}
	}
	if len(eligible) == 0 {
		return nil, relevance
	}

	// A clear score lead makes the story single-ticker.
	if s.scoreDiff > 0 && len(eligible) >= 2 && eligible[0].score-eligible[1].score >= s.scoreDiff {
		eligible = eligible[:1]
	}
	if len(eligible) > s.maxPrimary {
		eligible = eligible[:s.maxPrimary]
	}

	primaries := make([]string, len(eligible))
	for i, candidate := range eligible {
		primaries[i] = candidate.symbol
	}
	return primaries, relevance
}

// scoreTicker computes the 0-100 relevance for one candidate. A vendor's
// first-listed ticker earns the title weight even when the symbol never
// appears verbatim, since wires title with company names, not symbols.
func scoreTicker(symbol, title, summary string, carriedIndex int) (score, rank int) {
	pattern := mentionPattern(symbol)
	titleHits := pattern.FindAllStringIndex(title, -1)
	summaryHits := pattern.FindAllStringIndex(summary, -1)

	mentions := len(titleHits) + len(summaryHits)
	if carriedIndex >= 0 && mentions == 0 {
		mentions = 1
	}

	if len(titleHits) > 0 || carriedIndex == 0 {
		score += titleWeight
	}
	if len(summaryHits) > 0 && summaryHits[0][0] < firstParagraphBytes {
		score += firstParaWeight
	}
	if mentions > mentionCap {
		mentions = mentionCap
	}
	score += mentionWeight * mentions

	switch {
	case len(titleHits) > 0:
		rank = titleHits[0][0]
	case carriedIndex >= 0:
		rank = rankCarried + carriedIndex
	default:
		rank = rankAbsent
	}
	return score, rank
}

// mentionPattern builds the occurrence matcher for a symbol. Word
// boundaries cover bare, cashtag and exchange-qualified forms alike.
// Single-letter symbols only count as cashtags; a bare "A" is almost
// always the article.
func mentionPattern(symbol string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(symbol)
	if len(symbol) == 1 {
		return regexp.MustCompile(`\$` + quoted + `\b`)
	}
	return regexp.MustCompile(`\b` + quoted + `\b`)
}
