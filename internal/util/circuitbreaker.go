package util

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of the circuit breaker
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "CLOSED"
	CircuitStateOpen     CircuitState = "OPEN"
	CircuitStateHalfOpen CircuitState = "HALF_OPEN"
)

func (s CircuitState) String() string {
	return string(s)
}

// CircuitBreaker sheds load after repeated upstream failures. Quota
// exhaustion opens the circuit with a long custom timeout; ordinary 5xx
// failures open it with the configured reset timeout.
type CircuitBreaker struct {
	state            CircuitState
	failureCount     int
	successCount     int
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	nextRetryTime    time.Time
	logger           *zap.Logger
	mu               sync.Mutex
}

func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, halfOpenMax int, logger *zap.Logger) *CircuitBreaker {
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}
	return &CircuitBreaker{
		state:            CircuitStateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		logger:           logger,
	}
}

// CanExecute reports whether a request may proceed. An open circuit
// whose retry time has passed moves to HALF_OPEN and admits probes.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitStateOpen && time.Now().After(cb.nextRetryTime) {
		cb.transitionTo(CircuitStateHalfOpen)
		cb.successCount = 0
	}
	return cb.state != CircuitStateOpen
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitStateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenMax {
			cb.logger.Info("Circuit breaker: service recovered, closing circuit")
			cb.transitionTo(CircuitStateClosed)
			cb.failureCount = 0
		}
	case CircuitStateClosed:
		cb.failureCount = 0
	}
}

// RecordFailure records a failed request. A positive customTimeout
// overrides the configured reset timeout for this opening.
func (cb *CircuitBreaker) RecordFailure(customTimeout time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	timeout := cb.resetTimeout
	if customTimeout > 0 {
		timeout = customTimeout
	}

	if cb.state == CircuitStateHalfOpen {
		cb.logger.Warn("Circuit breaker: recovery probe failed, reopening",
			zap.Duration("timeout", timeout))
		cb.transitionTo(CircuitStateOpen)
		cb.nextRetryTime = time.Now().Add(timeout)
		return
	}

	if cb.failureCount >= cb.failureThreshold {
		cb.logger.Error("Circuit breaker: failure threshold reached, opening circuit",
			zap.Int("threshold", cb.failureThreshold),
			zap.Duration("timeout", timeout))
		cb.transitionTo(CircuitStateOpen)
		cb.nextRetryTime = time.Now().Add(timeout)
	}
}

// TripOpen opens the circuit immediately, bypassing the threshold.
// Used when a single response is authoritative, e.g. quota exhaustion.
func (cb *CircuitBreaker) TripOpen(timeout time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if timeout <= 0 {
		timeout = cb.resetTimeout
	}
	cb.failureCount = cb.failureThreshold
	cb.transitionTo(CircuitStateOpen)
	cb.nextRetryTime = time.Now().Add(timeout)
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitStateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.nextRetryTime = time.Time{}
}

// transitionTo changes the circuit state. Caller must hold the lock.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}
	cb.logger.Info("Circuit breaker: state transition",
		zap.String("from", cb.state.String()),
		zap.String("to", newState.String()),
		zap.Int("failure_count", cb.failureCount))
	cb.state = newState
}

// CircuitBreakerStatus is a point-in-time snapshot for /stats.
type CircuitBreakerStatus struct {
	State         CircuitState
	FailureCount  int
	NextRetryTime *time.Time
}

func (cb *CircuitBreaker) GetStatus() CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := CircuitBreakerStatus{
		State:        cb.state,
		FailureCount: cb.failureCount,
	}
	if cb.state == CircuitStateOpen {
		retry := cb.nextRetryTime
		status.NextRetryTime = &retry
	}
	return status
}
