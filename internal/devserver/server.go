package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/termsim-devserver/config"
	"github.com/angeloszaimis/termsim-devserver/internal/bootstrap"
	"github.com/angeloszaimis/termsim-devserver/internal/circuitbreaker"
	"github.com/angeloszaimis/termsim-devserver/internal/healthcheck"
	"github.com/angeloszaimis/termsim-devserver/internal/httpserver"
	"github.com/angeloszaimis/termsim-devserver/internal/metrics"
	"github.com/angeloszaimis/termsim-devserver/internal/proxy"
	"github.com/angeloszaimis/termsim-devserver/internal/static"
	"github.com/angeloszaimis/termsim-devserver/internal/ui"
)

const (
	StatsPath   = "/__devserver/stats"
	MetricsPath = "/__devserver/metrics"

	eventBufferSize = 1000
	pageTitle       = "Terminal Simulator"
)

type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	proxy     *proxy.Handler
	breakers  *circuitbreaker.Registry
	collector *metrics.Collector
	shell     *static.Shell
	engine    *gin.Engine
	http      *httpserver.Server
}

// New wires the dev server for cfg. cfg must already be validated.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	table, err := proxy.NewTable(cfg.Proxy.Rules)
	if err != nil {
		return nil, err
	}

	boot := bootstrap.New(cfg.Client.BaseURL, cfg.Client.MountPoint,
		ui.App{Title: pageTitle, BaseURL: cfg.Client.BaseURL})
	if err := boot.ConfigureClient(); err != nil {
		return nil, err
	}

	shell, err := static.New(cfg.Static.Dir, boot, logger)
	if err != nil {
		return nil, fmt.Errorf("static files: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	breakers := circuitbreaker.NewRegistry(cfg.Proxy.FailureThreshold, cfg.BreakerResetTimeout())
	collector := metrics.NewCollector(eventBufferSize, logger, registry)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		proxy:     proxy.NewHandler(logger, table, breakers, collector),
		breakers:  breakers,
		collector: collector,
		shell:     shell,
	}
	s.engine = s.setupRouter(registry)

	srv, err := httpserver.New(cfg.Server.Address, s.engine)
	if err != nil {
		return nil, fmt.Errorf("server address %q: %w", cfg.Server.Address, err)
	}
	s.http = srv

	return s, nil
}

func (s *Server) setupRouter(registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog(s.logger), forward(s.proxy))

	engine.GET(StatsPath, gin.WrapF(s.collector.Handler(s.breakers.Stats, s.proxy.Table().UpstreamStats)))
	engine.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	engine.NoRoute(gin.WrapH(s.shell))

	return engine
}

// Handler returns the dev server's router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr is the listen address, with the real port once Run has bound it.
func (s *Server) Addr() string {
	return s.http.Addr()
}

// Run serves until ctx is done or the listener fails, running the health
// checks, metrics collection and static file watching alongside.
func (s *Server) Run(ctx context.Context) error {
	if err := s.http.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Address, err)
	}

	s.logger.Info("Dev server listening", slog.String("addr", s.http.Addr()))
	for _, rule := range s.proxy.Table().Rules() {
		s.logger.Info("Proxying",
			slog.String("prefix", rule.Prefix),
			slog.String("target", rule.Upstream.Origin()))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.collector.Run(gctx)
		return nil
	})

	interval := s.cfg.HealthInterval()
	for _, upstream := range s.proxy.Table().Upstreams() {
		g.Go(func() error {
			healthcheck.HealthCheck(gctx, upstream, interval, s.logger, s.collector)
			return nil
		})
	}

	g.Go(func() error {
		s.watchShell(gctx)
		return nil
	})

	g.Go(func() error {
		return s.http.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down gracefully...")
		return s.http.Shutdown(context.Background())
	})

	return g.Wait()
}

// watchShell reloads the page shell on change. Reload is a convenience, so a
// watcher that cannot start is logged and the server keeps running.
func (s *Server) watchShell(ctx context.Context) {
	if err := s.shell.Watch(ctx); err != nil {
		s.logger.Warn("Page shell reload disabled",
			slog.String("dir", s.cfg.Static.Dir),
			slog.String("error", err.Error()))
	}
}
