package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveUpload(10)
		m.AddBytesServed("raw", 10)
		m.ObserveSweep("expire", 1, 0, time.Second)
		m.IdentifierExhausted("namespace")
		m.RegisterActiveStreams(func() int64 { return 1 })
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestMetrics_Recorders(t *testing.T) {
	m := New()

	m.ObserveUpload(100)
	m.ObserveUpload(50)
	m.AddBytesServed("raw", 42)
	m.AddBytesServed("raw", 0)
	m.ObserveSweep("expire", 3, 1, 10*time.Millisecond)
	m.IdentifierExhausted("content")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bytesServed.WithLabelValues("raw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("expire")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepRemoved.WithLabelValues("expire")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepErrors.WithLabelValues("expire")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.identityExhausted.WithLabelValues("content")))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/-/{namespace}/{content}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/abcd/file.txt", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/-/{namespace}/{content}", "404"))
	assert.Equal(t, 1.0, got)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RegisterActiveStreams(func() int64 { return 7 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cdn_active_streams 7")
}
