// Package metrics exposes the Prometheus collectors for the data layer.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visper"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	blobCalls    *prometheus.CounterVec
	blobLatency  *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blobCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobstore",
			Name:      "calls_total",
			Help:      "Blob store calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		blobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "blobstore",
			Name:      "call_duration_seconds",
			Help:      "Blob store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "events_total",
			Help:      "Retry policy events (retried, exhausted).",
		}, []string{"event"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(m.blobCalls, m.blobLatency, m.retries, m.cacheLookups)
	return m
}

// NewRegistry returns a registry pre-loaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveBlobCall(op string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.blobCalls.WithLabelValues(op, Outcome(err)).Inc()
	m.blobLatency.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retries.WithLabelValues("retried").Inc()
}

func (m *Metrics) Exhausted() {
	if m == nil {
		return
	}
	m.retries.WithLabelValues("exhausted").Inc()
}

func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// Outcome buckets an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
