package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/config"
	"github.com/brojonat/walletlens/service/db"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/brojonat/walletlens/service/price"
	"github.com/brojonat/walletlens/service/server"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"history_source", cfg.HistorySource,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	endpointLabel := solana.EndpointLabel(endpoint)
	solanaClient := solana.NewClient(
		solana.NewRPCClient(endpoint),
		endpointLabel,
		solana.NewLimiter(cfg.RPCRequestsPerSecond, cfg.RPCBurst),
		metricsCollector,
		logger,
	)
	logger.Info("initialized solana RPC client",
		"endpoint", endpointLabel,
		"total_endpoints", len(cfg.SolanaRPCURLs),
	)

	// History comes from RPC unless a database of imported transactions is configured
	var history analytics.HistorySource = solanaClient
	if cfg.HistorySource == config.HistorySourceDB {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := db.NewStore(pool, cfg.SolanaNetwork, metricsCollector)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		history = store
		logger.Info("connected to database")
	}

	priceSource, err := newPriceSource(cfg, metricsCollector, logger)
	if err != nil {
		logger.Error("invalid price configuration", "error", err)
		os.Exit(1)
	}

	analyzer := analytics.NewAnalyzer(
		solanaClient,
		solanaClient,
		history,
		priceSource,
		cfg.AnalyticsOptions(),
		metricsCollector,
		logger,
	)

	// NATS is optional: without it analyses are not announced and SSE is off
	var (
		publisher natspkg.Publisher
		events    server.EventSource
	)
	if cfg.NATSEnabled {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher

		ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer ssePublisher.Close()
		events = ssePublisher

		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, server.Options{
		AnalysisTimeout: cfg.AnalysisTimeout,
		AllowFallback:   cfg.AllowSyntheticFallback,
	}, analyzer, publisher, events, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"nats_enabled", cfg.NATSEnabled,
		"allow_synthetic_fallback", cfg.AllowSyntheticFallback,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// newPriceSource returns a fixed-rate source when PRICE_FIXED_RATE is set.
func newPriceSource(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (analytics.PriceSource, error) {
	if cfg.PriceFixedRate != "" {
		rate, err := decimal.NewFromString(cfg.PriceFixedRate)
		if err != nil {
			return nil, err
		}
		logger.Info("using fixed price rate", "symbol", cfg.PriceSymbol, "rate", rate.String())
		return price.StaticSource{Rate: rate}, nil
	}
	return price.NewHTTPSource(cfg.PriceAPIURL, cfg.PriceTimeout, nil, m, logger), nil
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
