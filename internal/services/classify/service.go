// Package classify scores news items against the catalyst keyword
// taxonomy. The taxonomy and its per-category weights are configuration:
// phrases live in a YAML file compiled at startup, weights in a second
// YAML file reloaded at every cycle so the outcome tracker can steer
// scoring without a restart.
package classify

import (
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// sentimentLean is how strongly the full variant lets the sentiment
// aggregate bend the keyword score.
const sentimentLean = 0.25

// Service is the catalyst classifier.
type Service struct {
	taxonomy    *Taxonomy
	weightsPath string
	baseline    float64

	mu      sync.RWMutex
	weights *models.DynamicWeights

	logger arbor.ILogger
}

var _ interfaces.ClassifierService = (*Service)(nil)

// NewService compiles the taxonomy and primes the weight table.
func NewService(cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	taxonomy, err := LoadTaxonomy(cfg.Classify.TaxonomyPath)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		taxonomy:    taxonomy,
		weightsPath: cfg.Classify.WeightsPath,
		baseline:    cfg.Classify.BaselineWeight,
		logger:      logger,
	}
	svc.weights = svc.ReloadWeights()

	logger.Info().
		Int("categories", len(taxonomy.Categories)).
		Str("taxonomy", cfg.Classify.TaxonomyPath).
		Msg("Catalyst taxonomy loaded")
	return svc, nil
}

// ReloadWeights re-reads the dynamic weight table and returns the current
// one. The file is written by the outcome tracker between cycles; a
// missing or malformed file keeps the previous table so one bad write
// never zeroes the scoring.
func (s *Service) ReloadWeights() *models.DynamicWeights {
	loaded, err := loadWeights(s.weightsPath, s.baseline)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).
				Str("path", s.weightsPath).
				Msg("Keeping previous dynamic weights")
		}
		s.mu.RLock()
		current := s.weights
		s.mu.RUnlock()
		if current != nil {
			return current
		}
		return &models.DynamicWeights{Baseline: s.baseline, LoadedAt: time.Now().UTC()}
	}

	s.mu.Lock()
	s.weights = loaded
	s.mu.Unlock()
	return loaded
}

// Classify runs the fast keyword pass over the item's title and summary.
func (s *Service) Classify(item *models.NewsItem, weights *models.DynamicWeights) (float64, map[string]float64) {
	return s.ClassifyText(item.Title, item.Summary, weights)
}

// ClassifyText scores arbitrary text. Each category counts at most once;
// within a category the earliest-listed phrase wins. The sum is clamped
// to the valid catalyst range.
func (s *Service) ClassifyText(title, summary string, weights *models.DynamicWeights) (float64, map[string]float64) {
	text := title + " " + summary
	hits := make(map[string]float64)
	var score float64

	for _, category := range s.taxonomy.Categories {
		for _, pattern := range category.patterns {
			if pattern.MatchString(text) {
				weight := weights.Weight(category.Name)
				hits[category.Name] = weight
				score += weight
				break
			}
		}
	}
	return models.ClampScore(score), hits
}

// ClassifyFull folds a sentiment aggregate into the fast result: a
// strongly positive read lifts the score up to 25%, a strongly negative
// one cuts it. Absent sentiment returns the fast result unchanged.
func (s *Service) ClassifyFull(item *models.NewsItem, weights *models.DynamicWeights, sentiment *models.Sentiment) (float64, map[string]float64) {
	score, hits := s.Classify(item, weights)
	if aggregate, ok := sentiment.AggregateScore(); ok {
		score = models.ClampScore(score * (1 + sentimentLean*aggregate))
	}
	return score, hits
}

// TopCategory returns the heaviest-hitting category from a hit map,
// breaking ties by taxonomy order. Empty string when there are no hits.
func (s *Service) TopCategory(hits map[string]float64) string {
	best := ""
	bestWeight := 0.0
	for _, category := range s.taxonomy.Categories {
		weight, ok := hits[category.Name]
		if !ok {
			continue
		}
		if best == "" || weight > bestWeight {
			best = category.Name
			bestWeight = weight
		}
	}
	return best
}
