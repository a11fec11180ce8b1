package llm

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/nuntius/internal/common"
)

// generationTemperature keeps extraction output stable across repeats of
// the same filing.
const generationTemperature = 0.2

// textProvider is the one-call surface the analyzer needs from a model
// vendor. Implementations pace themselves with a token bucket and retry
// rate limits internally.
type textProvider interface {
	// Generate sends one prompt to the named model and returns the raw
	// response text.
	Generate(ctx context.Context, model, system, prompt string) (string, error)

	Name() string
	Close() error
}

// modelTable maps the three model classes onto a provider's model names.
type modelTable struct {
	simple string
	medium string
	top    string
}

func (m modelTable) forClass(class string) string {
	switch class {
	case "top":
		return m.top
	case "medium":
		return m.medium
	default:
		return m.simple
	}
}

// newProvider builds the configured provider, falling back to whichever one
// has an API key. A nil provider with nil error means no key is configured
// anywhere and filing analysis is disabled.
func newProvider(cfg *common.Config, logger arbor.ILogger) (textProvider, modelTable, error) {
	preferred := cfg.LLM.DefaultProvider

	if preferred == common.LLMProviderClaude && cfg.Claude.APIKey == "" && cfg.Gemini.APIKey != "" {
		logger.Warn().Msg("Claude selected but has no API key, using Gemini")
		preferred = common.LLMProviderGemini
	}
	if preferred == common.LLMProviderGemini && cfg.Gemini.APIKey == "" && cfg.Claude.APIKey != "" {
		logger.Warn().Msg("Gemini selected but has no API key, using Claude")
		preferred = common.LLMProviderClaude
	}

	switch {
	case preferred == common.LLMProviderClaude && cfg.Claude.APIKey != "":
		p, err := newClaudeProvider(cfg.Claude, logger)
		if err != nil {
			return nil, modelTable{}, err
		}
		return p, modelTable{
			simple: cfg.Claude.SimpleModel,
			medium: cfg.Claude.MediumModel,
			top:    cfg.Claude.TopModel,
		}, nil
	case cfg.Gemini.APIKey != "":
		p, err := newGeminiProvider(cfg.Gemini, logger)
		if err != nil {
			return nil, modelTable{}, err
		}
		return p, modelTable{
			simple: cfg.Gemini.SimpleModel,
			medium: cfg.Gemini.MediumModel,
			top:    cfg.Gemini.TopModel,
		}, nil
	default:
		return nil, modelTable{}, nil
	}
}
