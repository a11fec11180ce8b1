package classify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/nuntius/internal/models"
)

// loadWeights reads the dynamic weight table, a flat YAML map of category
// to weight written by the outcome tracker. Negative weights clamp to
// zero; there is no upper bound since the score clamp caps the effect.
// An empty path yields a baseline-only table.
func loadWeights(path string, baseline float64) (*models.DynamicWeights, error) {
	weights := &models.DynamicWeights{
		Baseline: baseline,
		LoadedAt: time.Now().UTC(),
	}
	if path == "" {
		return weights, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing weights %s: %w", path, err)
	}

	weights.Weights = make(map[string]float64, len(raw))
	for category, weight := range raw {
		if weight < 0 {
			weight = 0
		}
		weights.Weights[category] = weight
	}
	return weights, nil
}
