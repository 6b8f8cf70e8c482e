package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/analytics"
	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/google/uuid"
)

const (
	minAddressLength = 32
	maxAddressLength = 44
	maxHistoryLimit  = 1000
	defaultMonths    = 3
	maxMonths        = 12
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// analysisResponse is the JSON body of a completed analysis.
type analysisResponse struct {
	ID string `json:"id"`
	*analytics.Report
}

// seriesResponse is a chart window over the analysis series.
type seriesResponse struct {
	ID        string                 `json:"id"`
	Wallet    string                 `json:"wallet"`
	Timeframe analytics.Timeframe    `json:"timeframe"`
	Points    []analytics.DailyPoint `json:"points"`
	Domain    analytics.Domain       `json:"domain"`
	Synthetic bool                   `json:"synthetic"`
	Label     string                 `json:"label,omitempty"`
}

// calendarResponse is the heatmap view of the analysis series.
type calendarResponse struct {
	ID        string                `json:"id"`
	Wallet    string                `json:"wallet"`
	Months    []analytics.MonthView `json:"months"`
	Summary   analytics.Summary     `json:"summary"`
	Synthetic bool                  `json:"synthetic"`
	Label     string                `json:"label,omitempty"`
}

// analysisRunner is the shared front half of every per-wallet endpoint:
// validate the request, run the analysis, publish it.
type analysisRunner struct {
	analyzer  Analyzer
	publisher natspkg.Publisher
	opts      Options
	logger    *slog.Logger
}

// run writes an error response and returns false when the analysis cannot be served.
func (a *analysisRunner) run(w http.ResponseWriter, r *http.Request) (string, *analytics.Report, bool) {
	address := r.PathValue("address")
	query := r.URL.Query()

	if err := validateAddress(address); err != nil {
		a.logger.Debug("invalid address", "address", address, "error", err)
		writeAnalysisError(w, analytics.WalletError(address, err))
		return "", nil, false
	}

	limit, err := parseLimit(query.Get("limit"))
	if err != nil {
		writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
		return "", nil, false
	}

	fallback, err := a.fallback(query.Get("fallback"), query.Get("seed"))
	if err != nil {
		writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
		return "", nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.opts.AnalysisTimeout)
	defer cancel()

	report, err := a.analyzer.Analyze(ctx, analytics.Request{
		Wallet:   address,
		Limit:    limit,
		Fallback: fallback,
	})
	if err != nil {
		writeAnalysisError(w, err)
		return "", nil, false
	}

	id := uuid.NewString()
	if err := a.publisher.PublishAnalysis(r.Context(), natspkg.NewAnalysisEventWithID(id, report, "server")); err != nil {
		// The analysis already succeeded; listeners just miss this one.
		a.logger.WarnContext(r.Context(), "failed to publish analysis event",
			"wallet", address,
			"id", id,
			"error", err,
		)
	}

	return id, report, true
}

// fallback resolves the synthetic provider for a request. "none" disables it.
func (a *analysisRunner) fallback(kind, seedStr string) (analytics.SyntheticProvider, error) {
	switch {
	case kind == "none":
		return nil, nil
	case kind == "" && !a.opts.AllowFallback:
		return nil, nil
	case kind == "":
		kind = "demo"
	}

	var seed uint64
	if seedStr != "" {
		parsed, err := strconv.ParseUint(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed parameter: must be a non-negative integer")
		}
		seed = parsed
	}
	return analytics.NewSyntheticProvider(kind, seed)
}

// handleAnalysis returns a handler that analyzes a wallet.
// GET /api/v1/wallets/{address}/analysis?limit=N&fallback=demo|empty|random|none
func handleAnalysis(runner *analysisRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, report, ok := runner.run(w, r)
		if !ok {
			return
		}
		writeJSON(w, analysisResponse{ID: id, Report: report}, http.StatusOK)
	})
}

// handleSeries returns a handler for the chart window of a wallet's daily series.
// GET /api/v1/wallets/{address}/series?timeframe=7D|30D|90D|ALL
func handleSeries(runner *analysisRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tf, err := analytics.ParseTimeframe(r.URL.Query().Get("timeframe"))
		if err != nil {
			writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		id, report, ok := runner.run(w, r)
		if !ok {
			return
		}

		points := analytics.SelectWindow(report.Series, tf)
		writeJSON(w, seriesResponse{
			ID:        id,
			Wallet:    report.Wallet,
			Timeframe: tf,
			Points:    points,
			Domain:    analytics.ValueDomain(points),
			Synthetic: report.Metrics.Synthetic,
			Label:     report.Metrics.Label,
		}, http.StatusOK)
	})
}

// handleCalendar returns a handler for the calendar heatmap of a wallet.
// GET /api/v1/wallets/{address}/calendar?year=YYYY&month=M
// GET /api/v1/wallets/{address}/calendar?months=N
func handleCalendar(runner *analysisRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sel, err := parseCalendarQuery(r)
		if err != nil {
			writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		id, report, ok := runner.run(w, r)
		if !ok {
			return
		}

		var months []analytics.MonthView
		if sel.year != 0 {
			months = []analytics.MonthView{analytics.MonthGrid(report.Series, sel.year, sel.month)}
		} else {
			months = analytics.Calendar(report.Series, report.GeneratedAt, sel.months)
		}

		writeJSON(w, calendarResponse{
			ID:        id,
			Wallet:    report.Wallet,
			Months:    months,
			Summary:   analytics.Summarize(report.Series),
			Synthetic: report.Metrics.Synthetic,
			Label:     report.Metrics.Label,
		}, http.StatusOK)
	})
}

// handleDemo returns a handler that serves a labeled synthetic report without touching any source.
// GET /api/v1/demo?kind=demo|empty|random&seed=N&address=ADDRESS
func handleDemo(window int, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var seed uint64
		if s := query.Get("seed"); s != "" {
			parsed, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				writeError(w, "invalid seed parameter: must be a non-negative integer", "INVALID_REQUEST", http.StatusBadRequest)
				return
			}
			seed = parsed
		}

		provider, err := analytics.NewSyntheticProvider(query.Get("kind"), seed)
		if err != nil {
			writeError(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		report := provider.Generate(query.Get("address"), window, time.Now())
		logger.Debug("served synthetic report", "label", provider.Label())
		writeJSON(w, analysisResponse{ID: uuid.NewString(), Report: &report}, http.StatusOK)
	})
}

type calendarSelection struct {
	year   int
	month  time.Month
	months int
}

func parseCalendarQuery(r *http.Request) (calendarSelection, error) {
	query := r.URL.Query()
	yearStr, monthStr := query.Get("year"), query.Get("month")

	if yearStr != "" || monthStr != "" {
		if yearStr == "" || monthStr == "" {
			return calendarSelection{}, errors.New("year and month must be given together")
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil || year < 1970 || year > 9999 {
			return calendarSelection{}, errors.New("invalid year parameter")
		}
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			return calendarSelection{}, errors.New("invalid month parameter: must be 1-12")
		}
		return calendarSelection{year: year, month: time.Month(month)}, nil
	}

	months := defaultMonths
	if s := query.Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxMonths {
			return calendarSelection{}, fmt.Errorf("invalid months parameter: must be 1-%d", maxMonths)
		}
		months = n
	}
	return calendarSelection{months: months}, nil
}

// parseLimit returns 0 (use the default) for an empty value.
func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid limit parameter: must be an integer")
	}
	if limit < 1 {
		return 0, errors.New("limit must be at least 1")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", maxHistoryLimit)
	}
	return limit, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, statusCode int) {
	writeJSON(w, map[string]string{
		"error": message,
		"code":  code,
	}, statusCode)
}

// writeAnalysisError maps a pipeline error to its status code. Internal
// failures are not described to the caller.
func writeAnalysisError(w http.ResponseWriter, err error) {
	status := analytics.StatusCode(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, "analysis timed out", "TIMEOUT", http.StatusGatewayTimeout)
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable:
		writeError(w, "internal server error", analytics.ErrorCode(err), status)
	default:
		writeError(w, err.Error(), analytics.ErrorCode(err), status)
	}
}

// validateAddress validates a wallet address for format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) < minAddressLength || len(address) > maxAddressLength {
		return errorf("invalid address length: must be %d-%d characters", minAddressLength, maxAddressLength)
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
