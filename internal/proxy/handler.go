package proxy

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/angeloszaimis/termsim-devserver/internal/circuitbreaker"
	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
)

// TargetHeader is set on proxied responses to name the upstream origin.
const TargetHeader = "X-Proxy-Target"

// Handler forwards requests that match a rule to the rule's upstream.
type Handler struct {
	logger    *slog.Logger
	table     *Table
	breakers  *circuitbreaker.Registry
	collector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	proxyErr   error
}

// NewHandler creates a proxy handler. breakers and collector may be nil.
func NewHandler(logger *slog.Logger, table *Table, breakers *circuitbreaker.Registry, collector *metrics.Collector) *Handler {
	return &Handler{
		logger:    logger,
		table:     table,
		breakers:  breakers,
		collector: collector,
	}
}

func (h *Handler) Table() *Table {
	return h.table
}

// ServeHTTP forwards matching requests and answers 404 for the rest.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.table.Match(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.Forward(w, r, rule)
}

// Forward sends r to rule's upstream and copies the response back to w.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request, rule *Rule) {
	upstream := rule.Upstream
	origin := upstream.Origin()

	var breaker *circuitbreaker.CircuitBreaker
	if h.breakers != nil {
		breaker = h.breakers.GetBreaker(origin)
		if !breaker.Allow() {
			h.reject(w, r, rule, breaker.RetryAfter())
			return
		}
	}

	// A cancelled or panicking request records neither outcome; its half-open
	// slot must still be given back.
	recorded := false
	defer func() {
		if breaker != nil && !recorded {
			breaker.Release()
		}
	}()

	h.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Route:     rule.Prefix,
		Upstream:  origin,
	})

	upstream.IncrementConn()
	defer upstream.DecrementConn()

	w.Header().Set(TargetHeader, origin)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	rule.proxy.ServeHTTP(rec, r)
	duration := time.Since(start)

	if rec.proxyErr != nil {
		if r.Context().Err() == nil {
			if breaker != nil {
				breaker.RecordFailure()
				recorded = true
			}
			h.collector.Emit(metrics.MetricEvent{
				Type:      metrics.EventUpstreamFailed,
				Timestamp: time.Now(),
				Route:     rule.Prefix,
				Upstream:  origin,
			})
		}
		h.logger.Warn("Proxy request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("target", origin),
			slog.Any("err", rec.proxyErr))
	} else {
		if breaker != nil {
			breaker.RecordSuccess()
			recorded = true
		}
		upstream.RecordResponse(duration)
		h.logger.Debug("Proxied request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("rule", rule.Prefix),
			slog.String("target", origin),
			slog.Int("status", rec.statusCode),
			slog.Duration("duration", duration))
	}

	h.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Route:      rule.Prefix,
		Upstream:   origin,
		Duration:   duration,
		StatusCode: rec.statusCode,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, rule *Rule, retryAfter time.Duration) {
	origin := rule.Upstream.Origin()

	h.logger.Warn("Upstream circuit open, rejecting request",
		slog.String("path", r.URL.Path),
		slog.String("target", origin),
		slog.Duration("retry_after", retryAfter))

	h.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventRequestRejected,
		Timestamp: time.Now(),
		Route:     rule.Prefix,
		Upstream:  origin,
	})

	if retryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
	}
	w.Header().Set(TargetHeader, origin)
	http.Error(w, fmt.Sprintf("dev proxy: %s is not responding, retry shortly", origin), http.StatusServiceUnavailable)
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed upstream responses through.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
