package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/clients", "200"))
	RecordHTTPRequest("get", "/api/clients", http.StatusOK, 12*time.Millisecond)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/clients", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordDocumentDefaultsKind(t *testing.T) {
	RecordDocument("", "failed")
	assert.GreaterOrEqual(t, testutil.ToFloat64(documentsProcessed.WithLabelValues("unknown", "failed")), 1.0)
}

func TestRecordJobRun(t *testing.T) {
	RecordJobRun("quota_reset", 0, true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(jobRuns.WithLabelValues("quota_reset", "true")), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordCreditConsumed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tradeflow_quota_credits_consumed_total"))
}
