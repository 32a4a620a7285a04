package proxy

import (
	"net/url"
	"sync"
	"time"
)

const ewmaAlpha = 0.2

// Upstream is a backend origin that one or more rules forward to. It tracks
// reachability, in-flight requests and an EWMA of response times.
type Upstream struct {
	url               *url.URL
	mutex             sync.Mutex
	isHealthy         bool
	activeConnections int
	ewmaResponseTime  time.Duration
	hasEWMA           bool
}

// NewUpstream creates an Upstream for origin. It starts out healthy so the
// first requests are forwarded before any probe has run.
func NewUpstream(origin *url.URL) *Upstream {
	return &Upstream{
		url:       origin,
		isHealthy: true,
	}
}

// URL returns the upstream origin.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// Origin returns the origin as a string, used as the key for breakers and
// metrics.
func (u *Upstream) Origin() string {
	return u.url.String()
}

func (u *Upstream) IncrementConn() {
	u.mutex.Lock()
	u.activeConnections++
	u.mutex.Unlock()
}

func (u *Upstream) DecrementConn() {
	u.mutex.Lock()
	if u.activeConnections > 0 {
		u.activeConnections--
	}
	u.mutex.Unlock()
}

func (u *Upstream) ActiveConnections() int {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.activeConnections
}

func (u *Upstream) IsHealthy() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.isHealthy
}

// SetHealthy updates the health status and reports whether it changed.
func (u *Upstream) SetHealthy(healthy bool) (changed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.isHealthy == healthy {
		return false
	}

	u.isHealthy = healthy
	return true
}

// RecordResponse folds duration into the EWMA response time.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	// ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the smoothed response time, or 0 before any response.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}
	return u.ewmaResponseTime
}
