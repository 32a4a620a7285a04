package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one breaker per upstream origin.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
	now       func() time.Time
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (r *Registry) GetBreaker(origin string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[origin]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cb, exists = r.breakers[origin]; exists {
		return cb
	}

	cb = newCircuitBreaker(r.threshold, r.timeout, r.now)
	r.breakers[origin] = cb
	return cb
}

// Stats returns the state name of every breaker, keyed by origin.
func (r *Registry) Stats() map[string]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]string, len(r.breakers))
	for origin, cb := range r.breakers {
		stats[origin] = cb.State().String()
	}
	return stats
}
