package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")

	assert.NotNil(t, m)
	assert.NotNil(t, m.Registry())
}

func TestNewMetricsDefaultNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.ObserveRequest("GET", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "edgerouter_requests_total")
}

func TestMetrics_Observations(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")

	// Should not panic
	m.ObserveRequest("GET", 200, 100*time.Millisecond)
	m.ObserveAction("proxy", "stop_table")
	m.ObserveUpstream("http://origin", 502, 50*time.Millisecond)
	m.ObserveCompression("br")
	m.ObserveRecursionRejection()
	m.ObserveAssetServe("hit")
	m.ObserveConfigReload(true)
	m.ObserveConfigReload(false)
	m.SetBuildInfo("v1.2.3")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveCompression("gzip")
	m.ObserveRecursionRejection()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "test_requests_total")
	assert.Contains(t, body, "test_compression_selected_total")
	assert.Contains(t, body, "test_recursion_rejections_total")
	assert.Contains(t, body, "go_")
}
