package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(replies.WithLabelValues("greeting"))
	IncReply("greeting")
	assert.Equal(t, before+1, testutil.ToFloat64(replies.WithLabelValues("greeting")))

	before = testutil.ToFloat64(upstreamErrors.WithLabelValues("generate"))
	IncUpstreamError("generate")
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamErrors.WithLabelValues("generate")))

	before = testutil.ToFloat64(cacheHits)
	IncCacheHit()
	assert.Equal(t, before+1, testutil.ToFloat64(cacheHits))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveAnswer("answer", time.Now())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medbot_answer_seconds")
}
