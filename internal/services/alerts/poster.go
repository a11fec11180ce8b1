package alerts

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

const (
	// One initial attempt plus two retries for 429/5xx responses.
	maxPostAttempts = 3

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 3 * time.Second
)

// Poster delivers webhook payloads one at a time. The mutex keeps posts
// ordered and lets rate-limit headers from one delivery pace the next.
type Poster struct {
	rest       *resty.Client
	webhookURL string
	adminURL   string
	jitterMs   int
	logger     arbor.ILogger

	mu          sync.Mutex
	nextAllowed time.Time
	keyRate     rate.Limit
	keyLimits   map[string]*rate.Limiter
}

var _ interfaces.WebhookPoster = (*Poster)(nil)

func NewPoster(cfg common.AlertsConfig, logger arbor.ILogger) *Poster {
	timeout := time.Duration(cfg.PostTimeoutSec * float64(time.Second))
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	adminURL := cfg.AdminWebhookURL
	if adminURL == "" {
		adminURL = cfg.WebhookURL
	}

	p := &Poster{
		rest: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		webhookURL: cfg.WebhookURL,
		adminURL:   adminURL,
		jitterMs:   cfg.JitterMs,
		logger:     logger,
	}
	if cfg.KeyRateLimit > 0 {
		p.keyRate = rate.Limit(float64(cfg.KeyRateLimit) / 60.0)
		p.keyLimits = make(map[string]*rate.Limiter)
	}
	return p
}

// Post delivers one alert, retrying 429 and 5xx up to the attempt budget.
// The returned result is never nil.
func (p *Poster) Post(ctx context.Context, alert *models.Alert) *models.PostResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.webhookURL == "" {
		return &models.PostResult{Err: fmt.Errorf("no webhook url configured")}
	}
	if lim := p.keyLimiter(alert); lim != nil && !lim.Allow() {
		p.logger.Warn().
			Str("ticker", alert.Ticker).
			Str("idempotency_key", alert.IdempotencyKey).
			Msg("Alert held by per-key rate limit")
		return &models.PostResult{Err: &common.RateLimitError{Provider: "webhook_key"}}
	}

	p.sleepJitter(ctx)
	return p.deliver(ctx, p.webhookURL, alert.Payload)
}

// PostAdmin sends an operational notice on the admin channel, sharing the
// poster's ordering and pacing.
func (p *Poster) PostAdmin(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adminURL == "" {
		return fmt.Errorf("no admin webhook url configured")
	}
	result := p.deliver(ctx, p.adminURL, &models.WebhookPayload{Content: text})
	if !result.OK {
		return result.Err
	}
	return nil
}

// deliver runs the attempt chain against one URL. Callers hold mu.
func (p *Poster) deliver(ctx context.Context, url string, payload *models.WebhookPayload) *models.PostResult {
	result := &models.PostResult{}
	wait := time.Duration(0)

	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		if wait > 0 {
			select {
			case <-ctx.Done():
				result.Err = ctx.Err()
				return result
			case <-time.After(wait):
			}
		}
		if err := p.awaitWindow(ctx); err != nil {
			result.Err = err
			return result
		}

		var message struct {
			ID string `json:"id"`
		}
		resp, err := p.rest.R().
			SetContext(ctx).
			SetQueryParam("wait", "true").
			SetBody(payload).
			SetResult(&message).
			Post(url)
		result.Attempts = attempt

		if err != nil {
			result.Err = &common.TransientNetworkError{Op: "webhook_post", Err: err}
			wait = retryBackoff(attempt)
			continue
		}

		result.StatusCode = resp.StatusCode()
		p.noteRateHeaders(resp)

		switch {
		case resp.IsSuccess():
			result.OK = true
			result.MessageID = message.ID
			result.Err = nil
			return result
		case resp.StatusCode() == http.StatusTooManyRequests:
			retryAfter := headerSeconds(resp, "Retry-After")
			result.Err = &common.RateLimitError{Provider: "webhook", RetryAfter: retryAfter}
			wait = retryBackoff(attempt)
			if retryAfter > wait {
				wait = retryAfter
			}
			p.logger.Warn().
				Int("attempt", attempt).
				Dur("retry_after", retryAfter).
				Msg("Webhook rate limited")
		case resp.StatusCode() >= 500:
			result.Err = &common.TransientNetworkError{Op: "webhook_post", StatusCode: resp.StatusCode()}
			wait = retryBackoff(attempt)
		default:
			result.Err = &common.PermanentNetworkError{
				Op:         "webhook_post",
				StatusCode: resp.StatusCode(),
				Message:    string(resp.Body()),
			}
			return result
		}
	}
	return result
}

// awaitWindow blocks until the pause demanded by the last response's
// rate-limit headers has passed.
func (p *Poster) awaitWindow(ctx context.Context) error {
	pause := time.Until(p.nextAllowed)
	if pause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pause):
		return nil
	}
}

// noteRateHeaders records the server's pacing for the next delivery. A zero
// remaining count defers the next post by the advertised reset window.
func (p *Poster) noteRateHeaders(resp *resty.Response) {
	remaining := resp.Header().Get("X-RateLimit-Remaining")
	if remaining != "0" {
		return
	}
	if reset := headerSeconds(resp, "X-RateLimit-Reset-After"); reset > 0 {
		p.nextAllowed = time.Now().Add(reset)
	}
}

func (p *Poster) keyLimiter(alert *models.Alert) *rate.Limiter {
	if p.keyLimits == nil {
		return nil
	}
	key := alert.Ticker + "|" + alert.Title + "|" + alert.Link
	lim, ok := p.keyLimits[key]
	if !ok {
		lim = rate.NewLimiter(p.keyRate, 1)
		p.keyLimits[key] = lim
	}
	return lim
}

func (p *Poster) sleepJitter(ctx context.Context) {
	if p.jitterMs <= 0 {
		return
	}
	jitter := time.Duration(rand.Intn(p.jitterMs+1)) * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

// retryBackoff doubles from the base per attempt, capped so a stalled
// webhook cannot hold the cycle hostage.
func retryBackoff(attempt int) time.Duration {
	wait := baseBackoff << (attempt - 1)
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

// headerSeconds parses a duration header given in seconds, fractional or
// whole.
func headerSeconds(resp *resty.Response, name string) time.Duration {
	raw := resp.Header().Get(name)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}
