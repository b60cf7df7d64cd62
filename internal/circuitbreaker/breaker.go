// Package circuitbreaker provides a fail-fast guard around an unreliable remote dependency.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned while the circuit is open.
var ErrOpen = errors.New("circuit breaker open: upstream calls suspended")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, calls fail fast
	StateHalfOpen              // Probing whether the upstream has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CircuitBreaker trips after a run of consecutive failures and rejects calls until
// the reset delay has passed.
type CircuitBreaker struct {
	// Consecutive failures that trip the circuit
	maxFailures int

	// Current state of the circuit breaker (Closed, Open, HalfOpen)
	state State

	// Consecutive failures seen while closed
	failures int

	// Timestamp of the last circuit trip
	lastTrip time.Time

	// Duration before auto-reset attempt
	resetDelay time.Duration

	mu sync.RWMutex

	// Count of consecutive successful calls in HalfOpen state
	successCount int

	// Number of successful calls required to close the circuit
	successThreshold int

	// Event callback for monitoring/alerting
	onTripCallback func(reason string)

	now func() time.Time
}

// New creates a CircuitBreaker that opens after maxFailures consecutive failures.
// A non-positive maxFailures disables tripping.
func New(maxFailures int) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:      maxFailures,
		state:            StateClosed,
		resetDelay:       30 * time.Second,
		successThreshold: 1,
		now:              time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of successful calls needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// WithClock replaces the time source.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// Allow reports whether a call may proceed. An open circuit moves to half-open
// once the reset delay has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state != StateOpen {
		return nil
	}
	if cb.now().Sub(lastTripTime) > cb.resetDelay {
		cb.transitionToHalfOpen()
		return nil
	}
	return ErrOpen
}

// RecordSuccess notes a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: upstream has recovered")
		}
	}
}

// RecordFailure notes a failed call and trips the circuit when the threshold is reached.
// Any failure while half-open trips it again.
func (cb *CircuitBreaker) RecordFailure(cause error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.trip(fmt.Sprintf("probe failed: %v", cause))
	case StateClosed:
		cb.failures++
		if cb.maxFailures > 0 && cb.failures >= cb.maxFailures {
			cb.trip(fmt.Sprintf("%d consecutive failures, last: %v", cb.failures, cause))
		}
	}
}

// Execute runs fn when the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.RecordSuccess()
	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing upstream recovery")
	}
}

// trip opens the circuit; callers hold the lock.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTrip = cb.now()
	cb.failures = 0
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason)
	}
}
