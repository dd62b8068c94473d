package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordTransition("approve", "success")
	m.RecordTransition("approve", "success")
	m.RecordTransition("reject", "CONFLICT")
	m.RecordUpload(false)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("approve", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("reject", "CONFLICT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.uploads.WithLabelValues("failure")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.cacheHitRatio))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memo_transitions_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordTransition("approve", "success")
	m.ObserveRender("pdf", "strict", time.Second)
	m.RecordArchive(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
