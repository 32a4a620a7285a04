// Package circuitbreaker stops the dev server from hammering a backend that
// is not running.
//
// Each upstream origin gets a breaker with three states:
//
//   - CLOSED: requests are forwarded
//   - OPEN: the backend failed repeatedly, requests are answered with 503
//   - HALF-OPEN: the reset timeout passed, one probe request is forwarded
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 10*time.Second)
//	cb := registry.GetBreaker("http://localhost:5000")
//	if cb.Allow() {
//	    // forward...
//	    if err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
