// Package circuitbreaker guards calls to external providers. After
// enough consecutive failures the breaker opens and calls fail fast;
// after a cool-down a single probe call is let through.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned, wrapped with the breaker name, while the breaker
// is open. Callers treat it as a transient condition.
var ErrOpen = errors.New("circuit open")

type state int

const (
	stateClosed state = iota
	stateHalfOpen
	stateOpen
)

// Settings configure one breaker. MaxFailures consecutive failures open
// it; Timeout is the open-state cool-down before a probe; failures older
// than Interval no longer count toward the threshold.
type Settings struct {
	Name        string
	MaxFailures int
	Interval    time.Duration
	Timeout     time.Duration
}

type CircuitBreaker struct {
	name        string
	maxFailures int
	interval    time.Duration
	timeout     time.Duration

	mu          sync.Mutex
	state       state
	failures    int
	lastFailure time.Time

	now func() time.Time
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures < 1 {
		settings.MaxFailures = 5
	}
	return &CircuitBreaker{
		name:        settings.Name,
		maxFailures: settings.MaxFailures,
		interval:    settings.Interval,
		timeout:     settings.Timeout,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open. A success closes the
// breaker and clears the failure count; a failure in half-open state
// reopens it immediately.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if cb.now().Sub(cb.lastFailure) < cb.timeout {
			return fmt.Errorf("%w: %s", ErrOpen, cb.name)
		}
		cb.state = stateHalfOpen
	case stateClosed:
		if cb.interval > 0 && cb.failures > 0 && cb.now().Sub(cb.lastFailure) > cb.interval {
			cb.failures = 0
		}
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == stateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = stateOpen
		}
		return
	}

	cb.state = stateClosed
	cb.failures = 0
}
