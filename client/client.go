package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
)

// Analysis is a completed wallet analysis as returned by the server.
type Analysis struct {
	ID string `json:"id"`
	analytics.Report
}

// Series is a chart window over a wallet's daily P&L series.
type Series struct {
	ID        string                 `json:"id"`
	Wallet    string                 `json:"wallet"`
	Timeframe string                 `json:"timeframe"`
	Points    []analytics.DailyPoint `json:"points"`
	Domain    analytics.Domain       `json:"domain"`
	Synthetic bool                   `json:"synthetic"`
	Label     string                 `json:"label,omitempty"`
}

// Calendar is the heatmap view of a wallet's daily P&L series.
type Calendar struct {
	ID        string                `json:"id"`
	Wallet    string                `json:"wallet"`
	Months    []analytics.MonthView `json:"months"`
	Summary   analytics.Summary     `json:"summary"`
	Synthetic bool                  `json:"synthetic"`
	Label     string                `json:"label,omitempty"`
}

// AnalyzeOptions are the optional query parameters of an analysis.
type AnalyzeOptions struct {
	// Limit caps the number of transactions fetched. Zero uses the server default.
	Limit int
	// Fallback names a synthetic provider (demo, empty, random) to use if the
	// analysis fails, or "none" to disable the server default.
	Fallback string
	Seed     uint64
}

func (o AnalyzeOptions) values() url.Values {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Fallback != "" {
		q.Set("fallback", o.Fallback)
	}
	if o.Seed != 0 {
		q.Set("seed", strconv.FormatUint(o.Seed, 10))
	}
	return q
}

// CalendarQuery selects the months of a calendar. Year and Month select a
// single month; otherwise Months trailing months are returned.
type CalendarQuery struct {
	Year   int
	Month  int
	Months int
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("request failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the walletlens analytics service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new analytics service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Analyze runs a full analysis of a wallet.
func (c *Client) Analyze(ctx context.Context, address string, opts AnalyzeOptions) (*Analysis, error) {
	var out Analysis
	if err := c.getJSON(ctx, walletPath(address, "analysis"), opts.values(), &out); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet analyzed", "address", address, "id", out.ID, "synthetic", out.Metrics.Synthetic)
	return &out, nil
}

// Series returns the chart window for timeframe (7D, 30D, 90D or ALL; empty means 30D).
func (c *Client) Series(ctx context.Context, address, timeframe string, opts AnalyzeOptions) (*Series, error) {
	q := opts.values()
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}

	var out Series
	if err := c.getJSON(ctx, walletPath(address, "series"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Calendar returns the heatmap months selected by cq.
func (c *Client) Calendar(ctx context.Context, address string, cq CalendarQuery, opts AnalyzeOptions) (*Calendar, error) {
	q := opts.values()
	if cq.Year != 0 || cq.Month != 0 {
		q.Set("year", strconv.Itoa(cq.Year))
		q.Set("month", strconv.Itoa(cq.Month))
	} else if cq.Months > 0 {
		q.Set("months", strconv.Itoa(cq.Months))
	}

	var out Calendar
	if err := c.getJSON(ctx, walletPath(address, "calendar"), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Demo returns a labeled synthetic report. kind is demo, empty or random.
func (c *Client) Demo(ctx context.Context, kind string, seed uint64) (*Analysis, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if seed != 0 {
		q.Set("seed", strconv.FormatUint(seed, 10))
	}

	var out Analysis
	if err := c.getJSON(ctx, "/api/v1/demo", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func walletPath(address, resource string) string {
	return fmt.Sprintf("/api/v1/wallets/%s/%s", url.PathEscape(address), resource)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
}
