// Package server implements the HTTP API over the ingestion and query
// pipelines: asynchronous ingestion with pollable status, synchronous
// question answering, liveness/readiness probes, and Prometheus metrics.
// The server is started by the `ragline serve` CLI command.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New constructs a Server from the pipeline dependencies and config.
func New(ing Ingestor, q Querier, wf WorkflowStore, cfg *Config) (*Server, error) {
	if ing == nil {
		return nil, fmt.Errorf("server: ingestor must not be nil")
	}
	if q == nil {
		return nil, fmt.Errorf("server: querier must not be nil")
	}
	if wf == nil {
		return nil, fmt.Errorf("server: workflow store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full query pipeline run including the
		// model retry schedule.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		ingestor:  ing,
		querier:   q,
		workflows: wf,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.Registry),
	}

	rl, stopRL := newIPRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("server: RAGLINE_API_KEY not set, API authentication disabled")
	}
	// Auth and rate limiting apply to the pipeline routes only; probes and
	// metrics stay open so orchestrators can scrape them.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, requireAPIKey(cfg.APIKey, rl.limit(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("GET /api/ingest/{id}/status", protected("ingest_status", s.handleIngestStatus))
	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      accessLog(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler. Used by tests to drive requests
// through the full middleware chain without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
