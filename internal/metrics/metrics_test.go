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

func TestMetrics_Disabled(t *testing.T) {
	var nilMetrics *Metrics
	for _, m := range []*Metrics{nilMetrics, New(Config{})} {
		m.RecordEvaluation("poll", 3, time.Millisecond)
		m.SetEntries(1, 2, 3)
		m.RecordChanges(1)
		m.RecordBatch("poll")
		m.ListenerStarted()
		m.ListenerStopped(true)
		m.RecordEnforcement("applied")
		m.RecordReload(true)
		assert.Nil(t, m.Registry())
	}

	rec := httptest.NewRecorder()
	New(Config{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Record(t *testing.T) {
	m := New(Config{Enabled: true})

	m.RecordEvaluation("poll", 4, 10*time.Millisecond)
	m.RecordEvaluation("poll", 2, 10*time.Millisecond)
	assert.Equal(t, 6.0, testutil.ToFloat64(m.evaluations.WithLabelValues("poll")))

	m.SetEntries(5, 1, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("drifted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.entries.WithLabelValues("missing")))

	m.RecordChanges(0)
	m.RecordChanges(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.changes))

	m.ListenerStarted()
	m.ListenerStarted()
	m.ListenerStopped(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listeners))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listenerFailures))

	m.RecordEnforcement("denied")
	m.RecordReload(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enforcements.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(Config{Enabled: true})
	m.RecordBatch("notify")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `regenforce_batches_total{source="notify"} 1`))
}
