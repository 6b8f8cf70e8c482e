package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAnalysis(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAnalysis("genuine", "success", 0.4)
	m.RecordAnalysis("genuine", "success", 0.2)
	m.RecordAnalysis("synthetic", "success", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("genuine", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("synthetic", "success")))
}

func TestRecordDBQuery_Status(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDBQuery("list_balance_changes", "balance_changes", 0.01, nil)
	m.RecordDBQuery("list_balance_changes", "balance_changes", 0.01, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("list_balance_changes", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("list_balance_changes", "error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/test", "GET", "4xx")))
}

func TestHTTPMetricsMiddleware_PreservesFlusher(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	var flushable bool
	handler := HTTPMetricsMiddleware(m, "/stream")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.True(t, flushable)
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	called := false
	handler := HTTPMetricsMiddleware(nil, "/x")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, called)
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{502, "5xx"},
		{99, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCodeToString(tt.code))
	}
}
