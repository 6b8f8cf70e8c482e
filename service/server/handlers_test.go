package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	"github.com/brojonat/walletlens/service/metrics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

var fixedToday = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

// stubAnalyzer returns a canned report or error and records the last request.
type stubAnalyzer struct {
	mu      sync.Mutex
	report  *analytics.Report
	err     error
	lastReq analytics.Request
}

func (s *stubAnalyzer) Analyze(ctx context.Context, req analytics.Request) (*analytics.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func (s *stubAnalyzer) Options() analytics.Options {
	return analytics.DefaultOptions()
}

func (s *stubAnalyzer) request() analytics.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReport() *analytics.Report {
	series := make([]analytics.DailyPoint, 0, 90)
	start := fixedToday.AddDate(0, 0, -89)
	for i := 0; i < 90; i++ {
		series = append(series, analytics.DailyPoint{
			Date:    start.AddDate(0, 0, i).Format(analytics.DayLayout),
			NetFiat: float64(i%5 - 2),
		})
	}
	return &analytics.Report{
		Wallet: testWallet,
		Metrics: analytics.WalletMetrics{
			TotalPnL:      5,
			TotalTrades:   1,
			WinningTrades: 1,
			WinRate:       100,
			CurrentValue:  200,
		},
		Series:      series,
		Rate:        "100",
		GeneratedAt: fixedToday,
	}
}

func newTestServer(t *testing.T, a Analyzer, pub natspkg.Publisher, opts Options) http.Handler {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return New(":0", opts, a, pub, nil, m, testLogger()).Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAnalysis_Success(t *testing.T) {
	a := &stubAnalyzer{report: testReport()}
	pub := natspkg.NewMockPublisher()
	h := newTestServer(t, a, pub, Options{})

	rec := get(t, h, "/api/v1/wallets/"+testWallet+"/analysis?limit=25")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		ID      string                  `json:"id"`
		Wallet  string                  `json:"wallet"`
		Metrics analytics.WalletMetrics `json:"metrics"`
		Series  []analytics.DailyPoint  `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, testWallet, resp.Wallet)
	assert.Equal(t, 1, resp.Metrics.TotalTrades)
	assert.Len(t, resp.Series, 90)

	req := a.request()
	assert.Equal(t, testWallet, req.Wallet)
	assert.Equal(t, 25, req.Limit)
	assert.Nil(t, req.Fallback)

	events := pub.GetPublishedEventsForWallet(testWallet)
	require.Len(t, events, 1)
	assert.Equal(t, resp.ID, events[0].ID)
	assert.Equal(t, "server", events[0].Source)
}

func TestAnalysis_PublishFailureStillSucceeds(t *testing.T) {
	pub := natspkg.NewMockPublisher()
	pub.SetPublishError(errors.New("nats down"))
	h := newTestServer(t, &stubAnalyzer{report: testReport()}, pub, Options{})

	rec := get(t, h, "/api/v1/wallets/"+testWallet+"/analysis")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalysis_RequestValidation(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode string
	}{
		{"address too short", "/api/v1/wallets/abc/analysis", "INVALID_WALLET"},
		{"address with invalid base58", "/api/v1/wallets/0OIl" + strings.Repeat("1", 40) + "/analysis", "INVALID_WALLET"},
		{"address too long", "/api/v1/wallets/" + strings.Repeat("A", 45) + "/analysis", "INVALID_WALLET"},
		{"non-numeric limit", "/api/v1/wallets/" + testWallet + "/analysis?limit=ten", "INVALID_REQUEST"},
		{"zero limit", "/api/v1/wallets/" + testWallet + "/analysis?limit=0", "INVALID_REQUEST"},
		{"limit too large", "/api/v1/wallets/" + testWallet + "/analysis?limit=1001", "INVALID_REQUEST"},
		{"unknown fallback", "/api/v1/wallets/" + testWallet + "/analysis?fallback=bogus", "INVALID_REQUEST"},
		{"bad seed", "/api/v1/wallets/" + testWallet + "/analysis?fallback=random&seed=-1", "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAnalyzer{report: testReport()}
			h := newTestServer(t, a, nil, Options{})

			rec := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, rec)["code"])
			assert.Empty(t, a.request().Wallet, "analyzer should not run")
		})
	}
}

func TestAnalysis_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid wallet", analytics.WalletError(testWallet, errors.New("bad key")), http.StatusBadRequest, "INVALID_WALLET"},
		{"source unavailable", analytics.SourceError("history", errors.New("503")), http.StatusBadGateway, "SOURCE_UNAVAILABLE"},
		{"price unavailable", analytics.PriceError("SOL", errors.New("no pairs")), http.StatusServiceUnavailable, "PRICE_UNAVAILABLE"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &stubAnalyzer{err: tt.err}, nil, Options{})

			rec := get(t, h, "/api/v1/wallets/"+testWallet+"/analysis")
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body["error"])
			}
		})
	}
}

func TestAnalysis_FallbackSelection(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		allow     bool
		wantLabel string
	}{
		{"none by default", "", false, ""},
		{"demo when allowed by config", "", true, "demo"},
		{"explicit kind", "?fallback=empty", false, "empty"},
		{"explicit none overrides config", "?fallback=none", true, ""},
		{"random with seed", "?fallback=random&seed=7", false, "random"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAnalyzer{report: testReport()}
			h := newTestServer(t, a, nil, Options{AllowFallback: tt.allow})

			rec := get(t, h, "/api/v1/wallets/"+testWallet+"/analysis"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			fb := a.request().Fallback
			if tt.wantLabel == "" {
				assert.Nil(t, fb)
				return
			}
			require.NotNil(t, fb)
			assert.Equal(t, tt.wantLabel, fb.Label())
		})
	}
}

type failingSources struct{}

func (failingSources) Balance(ctx context.Context, wallet string) (uint64, error) {
	return 0, errors.New("rpc down")
}

func (failingSources) Holdings(ctx context.Context, wallet string) (analytics.Holdings, error) {
	return analytics.Holdings{}, nil
}

func (failingSources) History(ctx context.Context, wallet string, limit int) ([]analytics.RawTransaction, error) {
	return nil, nil
}

func (failingSources) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}

func TestAnalysis_FallbackWithRealAnalyzer(t *testing.T) {
	src := failingSources{}
	a := analytics.NewAnalyzer(src, src, src, src, analytics.DefaultOptions(), nil, testLogger()).
		WithClock(func() time.Time { return fixedToday })
	h := newTestServer(t, a, nil, Options{})

	rec := get(t, h, "/api/v1/wallets/"+testWallet+"/analysis")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = get(t, h, "/api/v1/wallets/"+testWallet+"/analysis?fallback=demo")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Metrics.Synthetic)
	assert.Equal(t, "demo", resp.Metrics.Label)
}

func TestSeries(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{report: testReport()}, nil, Options{})

	tests := []struct {
		query         string
		wantTimeframe analytics.Timeframe
		wantPoints    int
	}{
		{"", analytics.Timeframe30D, 30},
		{"?timeframe=7d", analytics.Timeframe7D, 7},
		{"?timeframe=90D", analytics.Timeframe90D, 90},
		{"?timeframe=ALL", analytics.TimeframeAll, 90},
	}

	for _, tt := range tests {
		t.Run(string(tt.wantTimeframe), func(t *testing.T) {
			rec := get(t, h, "/api/v1/wallets/"+testWallet+"/series"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp seriesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantTimeframe, resp.Timeframe)
			assert.Len(t, resp.Points, tt.wantPoints)
			assert.Equal(t, "2024-01-03", resp.Points[len(resp.Points)-1].Date)
			assert.Equal(t, analytics.ValueDomain(resp.Points), resp.Domain)
		})
	}
}

func TestSeries_InvalidTimeframe(t *testing.T) {
	a := &stubAnalyzer{report: testReport()}
	h := newTestServer(t, a, nil, Options{})

	rec := get(t, h, "/api/v1/wallets/"+testWallet+"/series?timeframe=1Y")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, a.request().Wallet)
}

func TestCalendar(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{report: testReport()}, nil, Options{})

	t.Run("trailing months default", func(t *testing.T) {
		rec := get(t, h, "/api/v1/wallets/"+testWallet+"/calendar")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp calendarResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Months, 3)
		assert.Equal(t, 2023, resp.Months[0].Year)
		assert.Equal(t, 11, resp.Months[0].Month)
		assert.Equal(t, 2024, resp.Months[2].Year)
		assert.Equal(t, 1, resp.Months[2].Month)
		assert.Equal(t, 90, resp.Summary.TotalDays)
	})

	t.Run("single month", func(t *testing.T) {
		rec := get(t, h, "/api/v1/wallets/"+testWallet+"/calendar?year=2024&month=2")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp calendarResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Months, 1)
		assert.Equal(t, "February", resp.Months[0].Name)
		assert.Equal(t, 4, resp.Months[0].LeadingBlanks)
		assert.Len(t, resp.Months[0].Cells, 4+29)
	})

	for _, q := range []string{"?year=2024", "?month=13&year=2024", "?months=0", "?months=13", "?year=abc&month=1"} {
		t.Run("invalid "+q, func(t *testing.T) {
			rec := get(t, h, "/api/v1/wallets/"+testWallet+"/calendar"+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDemo(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})

	tests := []struct {
		query     string
		wantLabel string
	}{
		{"", "demo"},
		{"?kind=empty", "empty"},
		{"?kind=random&seed=42", "random"},
	}

	for _, tt := range tests {
		t.Run(tt.wantLabel, func(t *testing.T) {
			rec := get(t, h, "/api/v1/demo"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp analysisResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Metrics.Synthetic)
			assert.Equal(t, tt.wantLabel, resp.Metrics.Label)
			assert.Len(t, resp.Series, analytics.DefaultSeriesWindow)
		})
	}

	t.Run("random is reproducible by seed", func(t *testing.T) {
		a := get(t, h, "/api/v1/demo?kind=random&seed=9")
		b := get(t, h, "/api/v1/demo?kind=random&seed=9")
		var ra, rb analysisResponse
		require.NoError(t, json.Unmarshal(a.Body.Bytes(), &ra))
		require.NoError(t, json.Unmarshal(b.Body.Bytes(), &rb))
		assert.Equal(t, ra.Metrics, rb.Metrics)
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/demo?kind=nope").Code)
	})
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, httptest.NewRequest(http.MethodOptions, "/api/v1/demo", nil))
	assert.Equal(t, http.StatusNoContent, pre.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &stubAnalyzer{}, nil, Options{})
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, validateAddress(testWallet))
	assert.NoError(t, validateAddress("So11111111111111111111111111111111111111112"))
	assert.Error(t, validateAddress(""))
	assert.Error(t, validateAddress("short"))
	assert.Error(t, validateAddress(strings.Repeat("1", 45)))
	assert.Error(t, validateAddress(strings.Repeat("l", 40)))
	assert.Error(t, validateAddress(testWallet[:40]+"; --"))
}
