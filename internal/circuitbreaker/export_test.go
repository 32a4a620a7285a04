package circuitbreaker

import "time"

func NewCircuitBreakerWithClock(threshold int, timeout time.Duration, now func() time.Time) *CircuitBreaker {
	return newCircuitBreaker(threshold, timeout, now)
}
