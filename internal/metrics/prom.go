package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// promMetrics mirrors the collector's events as Prometheus series.
type promMetrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	rejected *prometheus.CounterVec
	duration *prometheus.HistogramVec
	healthy  *prometheus.GaugeVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	pm := &promMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_proxy_requests_total",
			Help: "Requests matched by a proxy rule",
		}, []string{"route"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_proxy_failures_total",
			Help: "Proxied requests that could not reach the upstream",
		}, []string{"route"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_proxy_rejected_total",
			Help: "Requests short-circuited by an open upstream circuit",
		}, []string{"route"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devserver_proxy_duration_seconds",
			Help:    "Time spent proxying a request",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "devserver_upstream_up",
			Help: "1 if the upstream accepted the last reachability probe",
		}, []string{"upstream"}),
	}

	if reg != nil {
		reg.MustRegister(pm.requests, pm.failures, pm.rejected, pm.duration, pm.healthy)
	}

	return pm
}

func (pm *promMetrics) observe(event MetricEvent) {
	switch event.Type {
	case EventRequestReceived:
		pm.requests.WithLabelValues(event.Route).Inc()
	case EventUpstreamFailed:
		pm.failures.WithLabelValues(event.Route).Inc()
	case EventRequestRejected:
		pm.rejected.WithLabelValues(event.Route).Inc()
	case EventResponseCompleted:
		pm.duration.WithLabelValues(event.Route, strconv.Itoa(event.StatusCode)).Observe(event.Duration.Seconds())
	case EventHealthChanged:
		v := 0.0
		if event.Healthy {
			v = 1
		}
		pm.healthy.WithLabelValues(event.Upstream).Set(v)
	}
}
