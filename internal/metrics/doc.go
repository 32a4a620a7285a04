// Package metrics collects proxy traffic statistics for the dev server.
//
// A channel-based event pipeline gathers, per proxy route:
//   - Request counts
//   - Upstream failures and circuit rejections
//   - Response times with percentiles (P50, P95, P99)
//   - HTTP status code distribution
//
// and upstream reachability per origin. Events are emitted without blocking
// the request path and processed by a single goroutine, which also feeds the
// Prometheus series exposed at /__devserver/metrics.
//
//	collector := metrics.NewCollector(1000, logger, prometheus.NewRegistry())
//	go collector.Run(ctx)
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Route:      "/execute",
//		Upstream:   "http://localhost:5000",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//	snapshot := collector.Snapshot()
package metrics
