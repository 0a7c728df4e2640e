package prometheus

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := NewPipelineMetrics("test")

	m.ObserveRequest("detect", "simple", "success", 3, 250*time.Millisecond)
	m.ObserveRequest("detect", "simple", "error", 0, 10*time.Millisecond)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("detect", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("detect", "error")))
	assert.Equal(t, float64(3),
		testutil.ToFloat64(m.BilledUnitsTotal.WithLabelValues("detect")))
}

func TestObserveTransfer(t *testing.T) {
	m := NewPipelineMetrics("test")
	m.ObserveTransfer("download", "https", 4096, 30*time.Millisecond)
	m.UploadFailures.WithLabelValues("s3").Inc()

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.UploadFailures.WithLabelValues("s3")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewPipelineMetrics("test")
	m.ObserveRequest("ocr", "file", "success", 1, time.Second)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_requests_total")
}
