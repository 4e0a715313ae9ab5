// Package metrics wraps the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so that independent instances (one per test,
// for example) never collide on registration.
//
// All methods are safe on a nil receiver, which disables recording.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	authFailures       *prometheus.CounterVec
	tokensIssued       prometheus.Counter
	validationFailures *prometheus.CounterVec
	statsCells         prometheus.Histogram
	statsMatrices      prometheus.Histogram
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "statsgate"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"method", "path"})

	m.authFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Rejected requests by error code.",
	}, []string{"code"})
	m.tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "tokens_issued_total",
		Help:      "Tokens issued by the login endpoint.",
	})

	m.validationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "validation_failures_total",
		Help:      "Rejected stats batches by error code.",
	}, []string{"code"})
	m.statsCells = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "batch_cells",
		Help:      "Number of flattened cells per aggregated batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~262k
	})
	m.statsMatrices = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "batch_matrices",
		Help:      "Number of matrices per aggregated batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.authFailures,
		m.tokensIssued,
		m.validationFailures,
		m.statsCells,
		m.statsMatrices,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks the start of a request.
func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

// DecrementInFlight marks the end of a request.
func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthFailure counts a rejected token or credential.
func (m *Metrics) RecordAuthFailure(code string) {
	if m != nil {
		m.authFailures.WithLabelValues(code).Inc()
	}
}

// RecordTokenIssued counts a successful login.
func (m *Metrics) RecordTokenIssued() {
	if m != nil {
		m.tokensIssued.Inc()
	}
}

// RecordValidationFailure counts a rejected batch.
func (m *Metrics) RecordValidationFailure(code string) {
	if m != nil {
		m.validationFailures.WithLabelValues(code).Inc()
	}
}

// RecordBatch records the size of an aggregated batch.
func (m *Metrics) RecordBatch(matrices, cells int) {
	if m == nil {
		return
	}
	m.statsMatrices.Observe(float64(matrices))
	m.statsCells.Observe(float64(cells))
}
