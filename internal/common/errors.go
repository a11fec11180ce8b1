package common

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError represents missing or invalid configuration. Fatal at startup.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransientNetworkError represents a retryable transport failure: timeouts,
// 5xx responses, connection resets.
type TransientNetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient network error in %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient network error in %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// PermanentNetworkError represents a non-retryable HTTP failure (4xx other
// than 429).
type PermanentNetworkError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *PermanentNetworkError) Error() string {
	return fmt.Sprintf("permanent network error in %s (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// ParseError represents a malformed payload; the offending item is dropped
// and the source continues.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error from %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DataGapError marks an optional field as unavailable. Callers treat the
// field as nil rather than failing.
type DataGapError struct {
	Ticker string
	Field  string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no %s data available for %s", e.Field, e.Ticker)
}

// RateLimitError is surfaced distinctly so token buckets and circuit breakers
// can react to it.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded, retry after %v", e.Provider, e.RetryAfter)
}

// CostLimitError indicates an LLM tier is disabled for the remainder of the
// UTC day.
type CostLimitError struct {
	Tier     string
	SpentUSD float64
	LimitUSD float64
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("LLM tier %s disabled: daily spend $%.2f exceeds $%.2f", e.Tier, e.SpentUSD, e.LimitUSD)
}

// StoreError represents a seen-store read/write failure. The cycle continues
// with degraded dedup.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried at the source.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	if errors.As(err, &te) {
		return true
	}
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsRateLimit reports whether err is a rate-limit rejection, and returns the
// provider-suggested delay when one was given.
func IsRateLimit(err error) (time.Duration, bool) {
	var re *RateLimitError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// IsDataGap reports whether err only marks a missing optional field.
func IsDataGap(err error) bool {
	var ge *DataGapError
	return errors.As(err, &ge)
}

// IsCostLimited reports whether err means the LLM tier budget is exhausted.
func IsCostLimited(err error) bool {
	var ce *CostLimitError
	return errors.As(err, &ce)
}
