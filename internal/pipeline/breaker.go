package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state machine position
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// ErrBreakerOpen is returned when a call is rejected by an open breaker
type ErrBreakerOpen struct {
	Service string
}

func (e *ErrBreakerOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service %s", e.Service)
}

// CircuitBreaker short-circuits calls to a failing external service.
// Transitions: closed → open after FailureThreshold consecutive failures;
// open → half-open after RecoveryTimeout; half-open → closed on success,
// half-open → open on failure.
type CircuitBreaker struct {
	service          string
	failureThreshold int
	recoveryTimeout  time.Duration

	mu           sync.Mutex
	state        BreakerState
	failures     int
	lastFailure  time.Time
	halfOpenBusy bool
}

// NewCircuitBreaker creates a closed breaker for one service
func NewCircuitBreaker(service string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		service:          service,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            BreakerClosed,
	}
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

// refresh moves open → half-open when the recovery timeout has elapsed.
// Caller holds the lock.
func (cb *CircuitBreaker) refresh() {
	if cb.state == BreakerOpen && time.Since(cb.lastFailure) >= cb.recoveryTimeout {
		cb.state = BreakerHalfOpen
		cb.halfOpenBusy = false
	}
}

// Execute runs fn behind the breaker. While open, calls fail fast with
// ErrBreakerOpen. In half-open state a single trial request is allowed
// through; concurrent callers fail fast until it resolves.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	cb.refresh()

	switch cb.state {
	case BreakerOpen:
		cb.mu.Unlock()
		return NewExternalServiceError(&ErrBreakerOpen{Service: cb.service})
	case BreakerHalfOpen:
		if cb.halfOpenBusy {
			cb.mu.Unlock()
			return NewExternalServiceError(&ErrBreakerOpen{Service: cb.service})
		}
		cb.halfOpenBusy = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == BreakerHalfOpen || cb.failures >= cb.failureThreshold {
			cb.state = BreakerOpen
		}
		cb.halfOpenBusy = false
		return err
	}

	cb.state = BreakerClosed
	cb.failures = 0
	cb.halfOpenBusy = false
	return nil
}

// BreakerRegistry holds process-global breakers keyed by service identity
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates an empty registry
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*CircuitBreaker)}
}

// Default breaker profiles per service class
var breakerDefaults = map[string]struct {
	threshold int
	recovery  time.Duration
}{
	"generator":      {threshold: 5, recovery: 30 * time.Second},
	"url_validation": {threshold: 10, recovery: 15 * time.Second},
	"image":          {threshold: 3, recovery: 30 * time.Second},
}

// Get returns the breaker for a service, creating it on first use.
// Services without a dedicated profile use the generator defaults.
func (r *BreakerRegistry) Get(service string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	profile, ok := breakerDefaults[service]
	if !ok {
		profile = breakerDefaults["generator"]
	}
	cb := NewCircuitBreaker(service, profile.threshold, profile.recovery)
	r.breakers[service] = cb
	return cb
}
