package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/nuntius/internal/common"
)

type geminiProvider struct {
	client  *genai.Client
	limiter *rate.Limiter
	timeout time.Duration
	retry   *retryConfig
	logger  arbor.ILogger
}

func newGeminiProvider(cfg common.GeminiConfig, logger arbor.ILogger) (*geminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	spacing, err := time.ParseDuration(cfg.RateLimit)
	if err != nil || spacing <= 0 {
		spacing = 4 * time.Second
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &geminiProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
		timeout: timeout,
		retry:   defaultRetryConfig(),
		logger:  logger,
	}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(generationTemperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= p.retry.maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, apiErr = p.client.Models.GenerateContent(callCtx, model, contents, config)
		cancel()
		if apiErr == nil {
			break
		}
		if attempt == p.retry.maxRetries {
			break
		}

		var wait time.Duration
		if isRateLimitError(apiErr) {
			wait = p.retry.backoff(attempt, extractRetryDelay(apiErr))
		} else {
			wait = time.Duration(attempt+1) * 2 * time.Second
		}

		p.logger.Warn().
			Int("attempt", attempt+1).
			Str("model", model).
			Dur("backoff", wait).
			Err(apiErr).
			Msg("Retrying Gemini call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	if apiErr != nil {
		return "", fmt.Errorf("gemini call failed after %d retries: %w", p.retry.maxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}
	return text, nil
}

func (p *geminiProvider) Close() error {
	p.client = nil
	return nil
}
