// Package price looks up the fiat rate used to value native balances.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public DexScreener API.
const DefaultBaseURL = "https://api.dexscreener.com"

// DefaultTokens maps symbols to the token address quoted for them.
var DefaultTokens = map[string]string{
	"SOL": "So11111111111111111111111111111111111111112",
}

// HTTPSource fetches USD prices from a DexScreener-compatible API.
type HTTPSource struct {
	baseURL    string
	tokens     map[string]string
	chain      string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewHTTPSource creates a price source. If httpClient is nil, a client with
// the given timeout is used. If m is nil, no metrics are recorded.
func NewHTTPSource(baseURL string, timeout time.Duration, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     DefaultTokens,
		chain:      "solana",
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

type tokensResponse struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		PriceUsd  string `json:"priceUsd"`
		Liquidity *struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

// Price returns the USD price of one whole unit of symbol. Among the pairs
// on the source's chain, the most liquid one with a usable price wins.
func (s *HTTPSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	start := time.Now()
	rate, err := s.fetch(ctx, symbol)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordPriceFetch(symbol, status, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "price lookup failed", "symbol", symbol, "error", err)
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		return decimal.Zero, analytics.PriceError(symbol, err)
	}

	s.logger.DebugContext(ctx, "fetched price", "symbol", symbol, "rate", rate.String())
	return rate, nil
}

func (s *HTTPSource) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	token, ok := s.tokens[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no token address known for %q", symbol)
	}

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", s.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out tokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}

	best := decimal.Zero
	bestLiquidity := -1.0
	for _, p := range out.Pairs {
		if s.chain != "" && p.ChainID != s.chain {
			continue
		}
		v, err := decimal.NewFromString(p.PriceUsd)
		if err != nil || !v.IsPositive() {
			continue
		}
		liquidity := 0.0
		if p.Liquidity != nil {
			liquidity = p.Liquidity.USD
		}
		if liquidity > bestLiquidity {
			best, bestLiquidity = v, liquidity
		}
	}
	if !best.IsPositive() {
		return decimal.Zero, fmt.Errorf("no priced %s pairs for %s", s.chain, symbol)
	}
	return best, nil
}

// StaticSource always returns the same rate. It serves offline runs and tests.
type StaticSource struct {
	Rate decimal.Decimal
}

func (s StaticSource) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if !s.Rate.IsPositive() {
		return decimal.Zero, analytics.PriceError(symbol, fmt.Errorf("static rate %s is not positive", s.Rate))
	}
	return s.Rate, nil
}
