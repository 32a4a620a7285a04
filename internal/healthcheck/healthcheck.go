package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
	"github.com/angeloszaimis/termsim-devserver/internal/proxy"
)

const dialTimeout = 2 * time.Second

// Probe reports whether upstream accepts TCP connections.
func Probe(ctx context.Context, upstream *proxy.Upstream) bool {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", hostPort(upstream))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// HealthCheck probes upstream immediately and then every interval until ctx
// is done. Status changes are logged and reported to collector, which may be
// nil.
func HealthCheck(
	ctx context.Context,
	upstream *proxy.Upstream,
	interval time.Duration,
	logger *slog.Logger,
	collector *metrics.Collector,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func(first bool) {
		healthy := Probe(ctx, upstream)
		if ctx.Err() != nil {
			return
		}

		changed := upstream.SetHealthy(healthy)
		if !changed && !first {
			return
		}

		collector.Emit(metrics.MetricEvent{
			Type:      metrics.EventHealthChanged,
			Timestamp: time.Now(),
			Upstream:  upstream.Origin(),
			Healthy:   healthy,
		})

		switch {
		case healthy && changed:
			logger.Info("Backend is back up", slog.String("server", upstream.Origin()))
		case !healthy:
			logger.Warn("Backend is not reachable, proxied calls will fail until it starts",
				slog.String("server", upstream.Origin()))
		}
	}

	check(true)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Health check stopped", slog.String("server", upstream.Origin()))
			return
		case <-ticker.C:
			check(false)
		}
	}
}

func hostPort(upstream *proxy.Upstream) string {
	u := upstream.URL()
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
