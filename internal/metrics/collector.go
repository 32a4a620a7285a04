package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventRequestReceived   EventType = "request_received"
	EventRequestRejected   EventType = "request_rejected"
	EventUpstreamFailed    EventType = "upstream_failed"
	EventResponseCompleted EventType = "response_completed"
	EventHealthChanged     EventType = "health_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Upstream   string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
}

// Collector consumes events off the request path and folds them into
// Metrics and the Prometheus registry.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	prom    *promMetrics
	logger  *slog.Logger
}

// NewCollector creates a collector. reg may be nil to skip Prometheus
// registration.
func NewCollector(bufferSize int, logger *slog.Logger, reg prometheus.Registerer) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		prom:    newPromMetrics(reg),
		logger:  logger,
	}
}

// Emit queues event without blocking; events are dropped when the buffer is
// full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
	}
}

// Run processes events until ctx is done, then drains what is queued.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Debug("metrics collector started")
	defer c.logger.Debug("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		c.metrics.IncrementRequests(event.Route)
	case EventRequestRejected:
		c.metrics.RecordRejected(event.Route)
	case EventUpstreamFailed:
		c.metrics.RecordFailure(event.Route)
	case EventResponseCompleted:
		c.metrics.RecordResponse(event.Route, event.Duration, event.StatusCode)
	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Upstream, event.Healthy)
	}
	c.prom.observe(event)
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
