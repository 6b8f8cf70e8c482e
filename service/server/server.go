package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer runs one wallet analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req analytics.Request) (*analytics.Report, error)
	Options() analytics.Options
}

// Options tune request handling.
type Options struct {
	// AnalysisTimeout bounds a single analysis.
	AnalysisTimeout time.Duration
	// AllowFallback makes "demo" the fallback when a request names none.
	AllowFallback bool
}

// Server represents the HTTP server for the analytics service.
type Server struct {
	addr      string
	opts      Options
	analyzer  Analyzer
	publisher natspkg.Publisher
	events    EventSource
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The publisher announces completed analyses; a nil publisher drops them.
// The events source is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, opts Options, analyzer Analyzer, publisher natspkg.Publisher, events EventSource, m *metrics.Metrics, logger *slog.Logger) *Server {
	if publisher == nil {
		publisher = natspkg.NoopPublisher{}
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = 60 * time.Second
	}
	return &Server{
		addr:      addr,
		opts:      opts,
		analyzer:  analyzer,
		publisher: publisher,
		events:    events,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	runner := &analysisRunner{
		analyzer:  s.analyzer,
		publisher: s.publisher,
		opts:      s.opts,
		logger:    s.logger,
	}

	s.route(mux, "GET /api/v1/wallets/{address}/analysis", handleAnalysis(runner))
	s.route(mux, "GET /api/v1/wallets/{address}/series", handleSeries(runner))
	s.route(mux, "GET /api/v1/wallets/{address}/calendar", handleCalendar(runner))
	s.route(mux, "GET /api/v1/demo", handleDemo(s.analyzer.Options().Window, s.logger))

	// SSE streaming endpoints (if an event source is configured)
	if s.events != nil {
		s.route(mux, "GET /api/v1/stream/analyses/{address}", handleStreamAnalyses(s.events, s.metrics, s.logger))
		s.route(mux, "GET /api/v1/stream/analyses", handleStreamAnalyses(s.events, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("event source not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: SSE responses stay open. Analyses are bounded by AnalysisTimeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
