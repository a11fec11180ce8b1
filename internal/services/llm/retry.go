package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// retryConfig shapes the backoff applied to rate-limited model calls. The
// defaults track Gemini's quota window, which resets on roughly a minute
// boundary; Claude's limits are shorter so the same curve over-waits a
// little, which is harmless.
type retryConfig struct {
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

func defaultRetryConfig() *retryConfig {
	return &retryConfig{
		maxRetries:        5,
		initialBackoff:    45 * time.Second,
		maxBackoff:        90 * time.Second,
		backoffMultiplier: 1.5,
	}
}

// isRateLimitError matches 429 responses and quota exhaustion from either
// provider by message text, since both SDKs surface them as opaque errors.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
// in Gemini quota errors.
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// extractRetryDelay parses the API-suggested retry delay out of an error
// message. Returns 0 when the error carries none.
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// backoff computes the wait before the given retry attempt. An API-provided
// delay, when present, replaces the initial backoff as the base; the result
// is capped at maxBackoff.
func (c *retryConfig) backoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.initialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.backoffMultiplier
	}

	wait := time.Duration(float64(base) * multiplier)
	if wait > c.maxBackoff {
		wait = c.maxBackoff
	}
	return wait
}
