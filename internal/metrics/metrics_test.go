package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(false)

	m.ObserveLookup(OutcomeSuccess)
	m.ObserveLookup(OutcomeSuccess)
	m.ObserveLookup(OutcomeNotFound)
	m.ObserveCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LookupCounter(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupCounter(OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheCounter("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheCounter("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLookup(OutcomeSuccess)
		m.ObserveCache("miss")
		m.ObserveUpstream("marcas", "200", time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New(false)
	m.ObserveUpstream("valor", "200", 300*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `motorgestor_fipe_upstream_request_duration_seconds_count{status="200",step="valor"} 1`)
	assert.NotContains(t, string(body), "go_goroutines")
}
