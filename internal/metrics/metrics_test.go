package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestObserveAttempt(t *testing.T) {
	m := newTestMetrics()
	m.ObserveAttempt("embed", nil)
	m.ObserveAttempt("embed", errors.New("boom"))
	m.ObserveAttempt("embed", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendAttemptsTotal.WithLabelValues("embed", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendAttemptsTotal.WithLabelValues("embed", "error")))
}

func TestObserveIngestion(t *testing.T) {
	m := newTestMetrics()
	m.ObserveIngestion("done", 12, time.Second)
	m.ObserveIngestion("failed", 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionRunsTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestionRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.ChunksIndexedTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("embed", nil)
		m.ObserveIngestion("done", 1, time.Second)
		m.ObserveCache(true)
	})

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := newTestMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ingest", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/ingest", "403")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}
