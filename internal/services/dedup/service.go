// Package dedup collapses a cycle's fetched items to one survivor per
// underlying event. Exact fingerprint groups are resolved first; a fuzzy
// title pass then catches the same story re-released under different
// vendor ids across wires.
package dedup

import (
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// Service implements in-cycle duplicate collapse.
type Service struct {
	threshold float32
	weightFor func(source string) int
	logger    arbor.ILogger
}

var _ interfaces.DedupService = (*Service)(nil)

// NewService wires the dedup pass to the configured source weights and
// similarity cutoff.
func NewService(cfg *common.Config, logger arbor.ILogger) *Service {
	threshold := float32(cfg.Dedup.FuzzyThreshold)
	if threshold <= 0 {
		threshold = 0.80
	}
	return &Service{
		threshold: threshold,
		weightFor: cfg.Feeds.SourceWeight,
		logger:    logger,
	}
}

// Dedup returns one item per logical event. Collapsed items are counted
// as duplicate skips on the cycle stats. Selection and output order are
// stable for identical input.
func (s *Service) Dedup(items []*models.NewsItem, stats *models.CycleStats) []*models.NewsItem {
	if len(items) == 0 {
		stats.Deduped = 0
		return nil
	}

	// Exact pass: same fingerprint means same event regardless of wording.
	groups := make(map[string]*models.NewsItem, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		fp := item.Fingerprint()
		held, ok := groups[fp]
		if !ok {
			groups[fp] = item
			order = append(order, fp)
			continue
		}
		winner, loser := s.prefer(held, item)
		groups[fp] = winner
		stats.Skip(models.SkipDuplicate)
		s.logger.Debug().
			Str("kept", winner.Source).
			Str("dropped", loser.Source).
			Str("title", loser.Title).
			Msg("Exact duplicate collapsed")
	}

	survivors := make([]*models.NewsItem, 0, len(order))
	for _, fp := range order {
		survivors = append(survivors, groups[fp])
	}
	sortByRecency(survivors)

	dropped := s.fuzzyPass(survivors, stats)
	if len(dropped) > 0 {
		kept := survivors[:0]
		for _, item := range survivors {
			if !dropped[item.Fingerprint()] {
				kept = append(kept, item)
			}
		}
		survivors = kept
	}

	stats.Deduped = len(survivors)
	return survivors
}

// fuzzyPass compares titles pairwise inside each ticker bucket and returns
// the fingerprints to drop. Items without tickers share one bucket so
// untagged wire copies still collapse against each other.
func (s *Service) fuzzyPass(items []*models.NewsItem, stats *models.CycleStats) map[string]bool {
	buckets := make(map[string][]*models.NewsItem)
	for _, item := range items {
		if len(item.Tickers) == 0 {
			buckets[""] = append(buckets[""], item)
			continue
		}
		for _, ticker := range item.Tickers {
			buckets[ticker] = append(buckets[ticker], item)
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dropped := make(map[string]bool)
	for _, key := range keys {
		bucket := buckets[key]
		for i := 0; i < len(bucket); i++ {
			a := bucket[i]
			if dropped[a.Fingerprint()] {
				continue
			}
			titleA := models.NormalizeTitle(a.Title)
			for j := i + 1; j < len(bucket); j++ {
				b := bucket[j]
				if dropped[b.Fingerprint()] {
					continue
				}
				score := TitleSimilarity(titleA, models.NormalizeTitle(b.Title))
				if score < s.threshold {
					continue
				}
				winner, loser := s.prefer(a, b)
				dropped[loser.Fingerprint()] = true
				stats.Skip(models.SkipDuplicate)
				s.logger.Debug().
					Str("kept", winner.Source).
					Str("dropped", loser.Source).
					Float64("similarity", float64(score)).
					Str("title", loser.Title).
					Msg("Fuzzy duplicate collapsed")
				if loser == a {
					break
				}
			}
		}
	}
	return dropped
}

// prefer picks the survivor of a duplicate pair: higher configured source
// weight first, then earliest published_at, then fingerprint order so the
// choice is stable.
func (s *Service) prefer(a, b *models.NewsItem) (winner, loser *models.NewsItem) {
	weightA, weightB := s.weightFor(a.Source), s.weightFor(b.Source)
	if weightA != weightB {
		if weightA > weightB {
			return a, b
		}
		return b, a
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		if a.PublishedAt.Before(b.PublishedAt) {
			return a, b
		}
		return b, a
	}
	if a.Fingerprint() <= b.Fingerprint() {
		return a, b
	}
	return b, a
}

func sortByRecency(items []*models.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].Fingerprint() < items[j].Fingerprint()
	})
}
