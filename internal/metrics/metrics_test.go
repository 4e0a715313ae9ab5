package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New("test")
	b := New("test")
	require.NotNil(t, a.Registry())
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestNew_DefaultNamespace(t *testing.T) {
	m := New("")
	m.RecordTokenIssued()
	assert.Contains(t, scrape(t, m), "statsgate_auth_tokens_issued_total 1")
}

func TestRecorders(t *testing.T) {
	m := New("test")

	m.IncrementInFlight()
	m.IncrementInFlight()
	m.DecrementInFlight()
	m.RecordHTTPRequest("POST", "/stats", "200", 3*time.Millisecond)
	m.RecordHTTPRequest("POST", "/stats", "200", 3*time.Millisecond)
	m.RecordAuthFailure("INVALID_TOKEN")
	m.RecordTokenIssued()
	m.RecordValidationFailure("EMPTY_BATCH")
	m.RecordBatch(2, 8)

	out := scrape(t, m)
	assert.Contains(t, out, "test_http_inflight_requests 1")
	assert.Contains(t, out, `test_http_requests_total{method="POST",path="/stats",status="200"} 2`)
	assert.Contains(t, out, `test_http_request_duration_seconds_count{method="POST",path="/stats"} 2`)
	assert.Contains(t, out, `test_auth_failures_total{code="INVALID_TOKEN"} 1`)
	assert.Contains(t, out, "test_auth_tokens_issued_total 1")
	assert.Contains(t, out, `test_stats_validation_failures_total{code="EMPTY_BATCH"} 1`)
	assert.Contains(t, out, "test_stats_batch_cells_sum 8")
	assert.Contains(t, out, "test_stats_batch_matrices_sum 2")
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementInFlight()
		m.DecrementInFlight()
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
		m.RecordAuthFailure("x")
		m.RecordTokenIssued()
		m.RecordValidationFailure("x")
		m.RecordBatch(1, 1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
