package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shisei-toshokan/shisei/web/internal/metrics"
)

func sampleCount(t *testing.T, labels ...string) uint64 {
	t.Helper()
	observer, err := metrics.RequestDuration.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, observer.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_LabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Metrics(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/42", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, uint64(1), sampleCount(t, http.MethodGet, "GET /api/things/{id}", "418"))
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/whatever", nil))
	assert.Equal(t, uint64(1), sampleCount(t, http.MethodPut, "unmatched", "200"))
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, _ = rec.Write([]byte("x"))
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, rec.status)
}
