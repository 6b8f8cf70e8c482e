package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal       *prometheus.CounterVec
	solanaRPCCallDuration     *prometheus.HistogramVec
	solanaRPCRateLimitWait    *prometheus.HistogramVec
	solanaTransactionsFetched *prometheus.CounterVec
	solanaTransactionsParsed  *prometheus.CounterVec

	// Price Metrics
	priceFetchTotal    *prometheus.CounterVec
	priceFetchDuration *prometheus.HistogramVec

	// Analysis Metrics
	analysesTotal         *prometheus.CounterVec
	analysisDuration      *prometheus.HistogramVec
	tradesClassifiedTotal *prometheus.CounterVec

	// Workflow Metrics
	workflowDuration        *prometheus.HistogramVec
	workflowExecutionsTotal *prometheus.CounterVec
	activityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the client-side RPC rate limiter",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"endpoint"},
		),
		solanaTransactionsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_transactions_fetched_total",
				Help: "Total number of transactions fetched for analysis",
			},
			[]string{"source"},
		),
		solanaTransactionsParsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_transactions_parsed_total",
				Help: "Total number of transactions converted to balance changes",
			},
			[]string{"status"},
		),

		// Price Metrics
		priceFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fetch_total",
				Help: "Total number of price lookups by symbol and status",
			},
			[]string{"symbol", "status"},
		),
		priceFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_fetch_duration_seconds",
				Help:    "Duration of price lookups in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"symbol"},
		),

		// Analysis Metrics
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_analyses_total",
				Help: "Total number of wallet analyses by kind (genuine, synthetic) and status",
			},
			[]string{"kind", "status"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_analysis_duration_seconds",
				Help:    "End-to-end duration of wallet analyses in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		tradesClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_classified_total",
				Help: "Total number of balance deltas classified, by class",
			},
			[]string{"class"},
		),

		// Workflow Metrics
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_workflow_duration_seconds",
				Help:    "Duration of analysis workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		workflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_workflow_executions_total",
				Help: "Total number of analysis workflow executions",
			},
			[]string{"status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_activity_duration_seconds",
				Help:    "Duration of analysis workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"status"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitWait records time spent blocked on the RPC rate limiter.
func (m *Metrics) RecordRateLimitWait(endpoint string, duration float64) {
	m.solanaRPCRateLimitWait.WithLabelValues(endpoint).Observe(duration)
}

// RecordTransactionsFetched records transactions fetched from a history source ("rpc" or "db").
func (m *Metrics) RecordTransactionsFetched(source string, count int) {
	m.solanaTransactionsFetched.WithLabelValues(source).Add(float64(count))
}

// RecordTransactionParsed records a transaction parse attempt.
func (m *Metrics) RecordTransactionParsed(status string) {
	m.solanaTransactionsParsed.WithLabelValues(status).Inc()
}

// Price metric helpers

// RecordPriceFetch records a price lookup.
func (m *Metrics) RecordPriceFetch(symbol, status string, duration float64) {
	m.priceFetchTotal.WithLabelValues(symbol, status).Inc()
	m.priceFetchDuration.WithLabelValues(symbol).Observe(duration)
}

// Analysis metric helpers

// RecordAnalysis records a finished analysis.
func (m *Metrics) RecordAnalysis(kind, status string, duration float64) {
	m.analysesTotal.WithLabelValues(kind, status).Inc()
	m.analysisDuration.WithLabelValues(kind).Observe(duration)
}

// RecordTradesClassified records count deltas of the given class.
func (m *Metrics) RecordTradesClassified(class string, count int) {
	m.tradesClassifiedTotal.WithLabelValues(class).Add(float64(count))
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.workflowDuration.WithLabelValues(status).Observe(duration)
	m.workflowExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, err error, duration float64) {
	m.activityDuration.WithLabelValues(activity, errStatus(err)).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, errStatus(err)).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
// Subjects embed wallet addresses, so they are not used as a label.
func (m *Metrics) RecordNATSPublish(status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(status).Observe(duration)
}

// Helper functions

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
