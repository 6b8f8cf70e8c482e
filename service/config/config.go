package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/joho/godotenv"
)

// History sources.
const (
	HistorySourceRPC = "rpc"
	HistorySourceDB  = "db"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration. SOLANA_RPC_URL may hold a comma-separated list.
	SolanaRPCURLs        []string
	SolanaNetwork        string
	RPCRequestsPerSecond float64
	RPCBurst             int

	// Price configuration. A positive PriceFixedRate bypasses the API.
	PriceAPIURL    string
	PriceSymbol    string
	PriceTimeout   time.Duration
	PriceFixedRate string

	// Pipeline configuration
	HistoryLimit           int
	SeriesWindowDays       int
	DustThresholdLamports  int64
	AllowSyntheticFallback bool
	AnalysisTimeout        time.Duration

	// History source: "rpc" or "db"
	HistorySource string
	DatabaseURL   string

	// NATS configuration
	NATSURL     string
	NATSEnabled bool

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURLs = splitList(os.Getenv("SOLANA_RPC_URL"))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "mainnet")

	rps, err := parseFloat("RPC_REQUESTS_PER_SECOND", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCRequestsPerSecond = rps
	}
	burst, err := parseInt("RPC_BURST", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCBurst = burst
	}

	// Price configuration
	cfg.PriceAPIURL = getEnvOrDefault("PRICE_API_URL", "https://api.dexscreener.com")
	cfg.PriceSymbol = strings.ToUpper(getEnvOrDefault("PRICE_SYMBOL", "SOL"))
	cfg.PriceFixedRate = os.Getenv("PRICE_FIXED_RATE")
	priceTimeout, err := parseDuration("PRICE_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PriceTimeout = priceTimeout
	}

	// Pipeline configuration
	if cfg.HistoryLimit, err = parseInt("HISTORY_LIMIT", 100); err != nil {
		errs = append(errs, err)
	}
	if cfg.SeriesWindowDays, err = parseInt("SERIES_WINDOW_DAYS", 90); err != nil {
		errs = append(errs, err)
	}
	if cfg.DustThresholdLamports, err = parseInt64("DUST_THRESHOLD_LAMPORTS", 10_000_000); err != nil {
		errs = append(errs, err)
	}
	if cfg.AllowSyntheticFallback, err = parseBool("ALLOW_SYNTHETIC_FALLBACK", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.AnalysisTimeout, err = parseDuration("ANALYSIS_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}

	// History source
	cfg.HistorySource = strings.ToLower(getEnvOrDefault("HISTORY_SOURCE", HistorySourceRPC))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.HistorySource == HistorySourceDB && cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required when HISTORY_SOURCE=db"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	if cfg.NATSEnabled, err = parseBool("NATS_ENABLED", true); err != nil {
		errs = append(errs, err)
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "walletlens-analysis")

	if err := cfg.validateRanges(); err != nil {
		errs = append(errs, err)
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.HistorySource != HistorySourceRPC && c.HistorySource != HistorySourceDB {
		errs = append(errs, fmt.Errorf("HistorySource must be %q or %q, got %q", HistorySourceRPC, HistorySourceDB, c.HistorySource))
	}

	if c.HistorySource == HistorySourceDB && c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required when HistorySource is db"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if err := c.validateRanges(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func (c *Config) validateRanges() error {
	var errs []error
	if c.HistoryLimit < 1 || c.HistoryLimit > 1000 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be between 1 and 1000, got %d", c.HistoryLimit))
	}
	if c.SeriesWindowDays < 1 {
		errs = append(errs, fmt.Errorf("SERIES_WINDOW_DAYS must be positive, got %d", c.SeriesWindowDays))
	}
	if c.DustThresholdLamports < 0 {
		errs = append(errs, fmt.Errorf("DUST_THRESHOLD_LAMPORTS cannot be negative"))
	}
	if c.RPCRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("RPC_REQUESTS_PER_SECOND cannot be negative"))
	}
	if c.AnalysisTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ANALYSIS_TIMEOUT must be at least 1 second"))
	}
	return errors.Join(errs...)
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseInt(strings.ReplaceAll(value, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AnalyticsOptions returns the pipeline settings for this configuration.
func (c *Config) AnalyticsOptions() analytics.Options {
	opts := analytics.DefaultOptions()
	opts.Symbol = c.PriceSymbol
	opts.DustThreshold = c.DustThresholdLamports
	opts.Window = c.SeriesWindowDays
	opts.HistoryLimit = c.HistoryLimit
	return opts
}
