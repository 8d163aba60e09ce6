// Package metrics exposes Prometheus metrics for the CDN.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cdn"

// Metrics holds every collector of the service on its own registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	uploads           prometheus.Counter
	uploadBytes       prometheus.Counter
	bytesServed       *prometheus.CounterVec
	sweepRuns         *prometheus.CounterVec
	sweepRemoved      *prometheus.CounterVec
	sweepErrors       *prometheus.CounterVec
	sweepDuration     *prometheus.HistogramVec
	sweepLastRun      *prometheus.GaugeVec
	identityExhausted *prometheus.CounterVec
}

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of stored uploads.",
		}),
		uploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total number of uploaded bytes.",
		}),
		bytesServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_bytes_total",
			Help:      "Total number of content bytes sent to clients.",
		}, []string{"view"}),
		sweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of lifecycle sweep runs.",
		}, []string{"sweep"}),
		sweepRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Total number of index entries removed by lifecycle sweeps.",
		}, []string{"sweep"}),
		sweepErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Total number of errors met by lifecycle sweeps.",
		}, []string{"sweep"}),
		sweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Lifecycle sweep duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
		sweepLastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed sweep.",
		}, []string{"sweep"}),
		identityExhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifier_exhausted_total",
			Help:      "Total number of identifier generations that ran out of attempts.",
		}, []string{"kind"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterActiveStreams exports fn as the number of in-flight content streams.
func (m *Metrics) RegisterActiveStreams(fn func() int64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_streams",
		Help:      "Number of content streams currently being sent.",
	}, func() float64 { return float64(fn()) })
}

// ObserveUpload records a stored upload of size bytes.
func (m *Metrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadBytes.Add(float64(size))
}

// AddBytesServed records n bytes sent by the given view.
func (m *Metrics) AddBytesServed(view string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesServed.WithLabelValues(view).Add(float64(n))
}

// ObserveSweep records one completed sweep run.
func (m *Metrics) ObserveSweep(sweep string, removed, errs int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(sweep).Inc()
	m.sweepRemoved.WithLabelValues(sweep).Add(float64(removed))
	m.sweepErrors.WithLabelValues(sweep).Add(float64(errs))
	m.sweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	m.sweepLastRun.WithLabelValues(sweep).SetToCurrentTime()
}

// IdentifierExhausted records an identifier generator giving up.
func (m *Metrics) IdentifierExhausted(kind string) {
	if m == nil {
		return
	}
	m.identityExhausted.WithLabelValues(kind).Inc()
}

// Middleware records request counts and durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
