// Package degradation composes a circuit breaker with an optional
// fallback thunk, and tracks per-feature enable/disable state so the
// pipeline can gracefully degrade when an outbound dependency misbehaves.
package degradation

import (
	"github.com/roelfdiedericks/ctxproxy/internal/breaker"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Operation is the primary action a strategy guards.
type Operation[T any] func() (T, error)

// Fallback runs when the primary operation is skipped or fails.
type Fallback[T any] func() (T, error)

// CircuitBreakerStrategy executes an operation behind a circuit breaker,
// optionally running a fallback when the breaker is open or the
// operation fails.
type CircuitBreakerStrategy struct {
	Breaker        *breaker.Breaker
	FallbackOnOpen bool
}

// NewCircuitBreakerStrategy returns a strategy guarding b.
func NewCircuitBreakerStrategy(b *breaker.Breaker, fallbackOnOpen bool) *CircuitBreakerStrategy {
	return &CircuitBreakerStrategy{Breaker: b, FallbackOnOpen: fallbackOnOpen}
}

// Execute runs operation under circuit-breaker protection. If the
// breaker denies the call, fallback runs (when FallbackOnOpen and a
// fallback are set) or a zero value is returned with a nil error. On
// operation failure, the breaker records the failure and fallback runs
// if given; otherwise the error propagates.
func Execute[T any](s *CircuitBreakerStrategy, operationName string, operation Operation[T], fallback Fallback[T]) (T, error) {
	var zero T

	if !s.Breaker.CanExecute() {
		L_warn("degradation: circuit open", "operation", operationName, "circuit", s.Breaker.Name())
		if fallback != nil && s.FallbackOnOpen {
			return fallback()
		}
		return zero, nil
	}

	result, err := operation()
	if err != nil {
		s.Breaker.RecordFailure()
		L_error("degradation: operation failed",
			"operation", operationName, "error", err, "circuit_state", s.Breaker.State())
		if fallback != nil {
			return fallback()
		}
		return zero, err
	}

	s.Breaker.RecordSuccess()
	return result, nil
}
