package market

import (
	"sync"
	"time"
)

// Breaker trips after repeated upstream failures so a provider outage does
// not turn every chat message into a slow timeout. Open circuits reject
// immediately until resetTimeout passes, then a few probe requests are let
// through half-open.
type Breaker struct {
	mu sync.RWMutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int

	failures      int
	lastFailure   time.Time
	state         BreakerState
	halfOpenCount int
}

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func NewBreaker() *Breaker {
	return &Breaker{
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
		halfOpenMax:      2,
		state:            BreakerClosed,
	}
}

func NewBreakerWithConfig(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if resetTimeout < time.Second {
		resetTimeout = 30 * time.Second
	}
	if halfOpenMax < 1 {
		halfOpenMax = 2
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		state:            BreakerClosed,
	}
}

// Allow reports whether a request may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.state = BreakerHalfOpen
			b.halfOpenCount = 0
			return true
		}
		return false

	case BreakerHalfOpen:
		if b.halfOpenCount < b.halfOpenMax {
			b.halfOpenCount++
			return true
		}
		return false
	}

	return false
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.failures >= b.failureThreshold {
		b.state = BreakerOpen
	}

	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.halfOpenCount = 0
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Breaker) StateString() string {
	switch b.State() {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.halfOpenCount = 0
}
