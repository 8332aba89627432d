// Package breaker guards calls to external collaborators. When a
// collaborator fails repeatedly the breaker opens and callers skip the
// call entirely, serving their degraded path without waiting on a
// timeout every time.
package breaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // healthy, calls flow
	StateOpen                  // failing, calls skipped
	StateHalfOpen              // probing, one call allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a mutex-protected circuit breaker. The zero value is not
// usable; construct with New.
type Breaker struct {
	mu sync.Mutex

	state    State
	failures int
	openedAt time.Time

	failureThreshold int
	probeInterval    time.Duration
}

func New(failureThreshold int, probeInterval time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		probeInterval:    probeInterval,
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState transitions open to half-open once the probe interval
// has elapsed. Must be called with mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.probeInterval {
		b.state = StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call should be attempted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != StateOpen
}

// RecordSuccess closes the circuit after a successful probe.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failures = 0
}

// RecordFailure counts a failure, opening the circuit at the threshold
// or immediately when a probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}
