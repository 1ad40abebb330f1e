package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed passes requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen allows a probe request to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
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

// ErrBreakerOpen is returned when a lookup is rejected because the
// catalog has failed repeatedly and the breaker is open.
var ErrBreakerOpen = eris.New("resilience: circuit breaker open")

// Breaker is a circuit breaker for a single upstream service.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu              sync.Mutex
	state           BreakerState
	failures        int
	lastFailureTime time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a Breaker that opens after failureThreshold
// consecutive failures and probes again after resetTimeout.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 15 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
		nowFunc:          time.Now,
	}
}

// Allow reports whether a request may proceed. In the open state it
// returns ErrBreakerOpen until the reset timeout has elapsed, then lets a
// single probe through in half-open state.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.nowFunc().Sub(b.lastFailureTime) >= b.resetTimeout {
			b.state = BreakerHalfOpen
			return nil
		}
		return ErrBreakerOpen
	case BreakerClosed, BreakerHalfOpen:
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an allowed request back into the breaker.
// Only transient errors count toward the failure threshold: a 404 from
// the catalog is an answer, not an outage.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		b.failures = 0
		b.state = BreakerClosed
		return
	}

	b.failures++
	b.lastFailureTime = b.nowFunc()
	if b.state == BreakerHalfOpen || b.failures >= b.failureThreshold {
		b.state = BreakerOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailureTime) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
}
