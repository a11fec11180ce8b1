package llm

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/models"
)

type analysisYAML struct {
	DocID     string            `yaml:"doc_id"`
	Summary   string            `yaml:"summary"`
	Keywords  []string          `yaml:"keywords"`
	Metrics   map[string]string `yaml:"metrics"`
	Sentiment float64           `yaml:"sentiment"`
}

// extractYAML pulls the YAML payload out of a model response that may be
// wrapped in markdown code fences.
func extractYAML(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```yaml") {
		start := strings.Index(response, "```yaml") + 7
		end := strings.LastIndex(response, "```")
		if end > start {
			return strings.TrimSpace(response[start:end])
		}
	}
	if strings.Contains(response, "```") {
		start := strings.Index(response, "```") + 3
		end := strings.LastIndex(response, "```")
		if end > start {
			return strings.TrimSpace(response[start:end])
		}
	}
	return response
}

// parseAnalyses decodes a batch response into per-document analyses keyed by
// doc_id. Entries the model invented or mangled are dropped rather than
// guessed at.
func parseAnalyses(response string) (map[string]*models.Analysis, error) {
	payload := extractYAML(response)

	var entries []analysisYAML
	if err := yaml.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, &common.ParseError{Source: "llm_response", Err: err}
	}

	out := make(map[string]*models.Analysis, len(entries))
	for _, e := range entries {
		if e.DocID == "" {
			continue
		}
		out[e.DocID] = &models.Analysis{
			DocID:     e.DocID,
			Summary:   strings.TrimSpace(e.Summary),
			Keywords:  e.Keywords,
			Metrics:   e.Metrics,
			Sentiment: clampSentiment(e.Sentiment),
		}
	}
	return out, nil
}

func clampSentiment(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
