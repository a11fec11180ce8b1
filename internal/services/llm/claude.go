package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
)

type claudeProvider struct {
	client    anthropic.Client
	maxTokens int
	limiter   *rate.Limiter
	timeout   time.Duration
	retry     *retryConfig
	logger    arbor.ILogger
}

func newClaudeProvider(cfg common.ClaudeConfig, logger arbor.ILogger) (*claudeProvider, error) {
	spacing, err := time.ParseDuration(cfg.RateLimit)
	if err != nil || spacing <= 0 {
		spacing = time.Second
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &claudeProvider{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(rate.Every(spacing), 1),
		timeout:   timeout,
		retry:     defaultRetryConfig(),
		logger:    logger,
	}, nil
}

func (p *claudeProvider) Name() string { return "claude" }

func (p *claudeProvider) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(generationTemperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	var resp *anthropic.Message
	var apiErr error

	for attempt := 0; attempt <= p.retry.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, apiErr = p.client.Messages.New(callCtx, params)
		cancel()
		if apiErr == nil {
			break
		}
		if attempt == p.retry.maxRetries {
			break
		}

		wait := time.Duration(attempt+1) * 2 * time.Second
		if isRateLimitError(apiErr) {
			wait = p.retry.backoff(attempt, 0)
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Str("model", model).
			Dur("backoff", wait).
			Err(apiErr).
			Msg("Retrying Claude call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	if apiErr != nil {
		return "", fmt.Errorf("claude call failed after %d retries: %w", p.retry.maxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}
	return text.String(), nil
}

func (p *claudeProvider) Close() error {
	p.client = anthropic.Client{}
	return nil
}
