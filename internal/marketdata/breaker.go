package marketdata

import (
	"sync"
	"time"
)

const (
	breakerClosed   = "closed"
	breakerOpen     = "open"
	breakerHalfOpen = "half_open"
)

// circuitBreaker trips a provider out of the chain after a run of consecutive
// failures and lets a single probe through once the cooldown elapses. Data
// gaps do not count as failures; callers report only transport-level errors.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures int
	openedAt time.Time
	probing  bool
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.openedAt) >= b.cooldown {
		b.probing = true
		return true
	}
	return false
}

func (b *circuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}

func (b *circuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.probing || b.failures >= b.threshold {
		b.openedAt = time.Now()
	}
	b.probing = false
}

func (b *circuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return breakerClosed
	}
	if b.probing {
		return breakerHalfOpen
	}
	return breakerOpen
}
