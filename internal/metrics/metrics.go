// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistence(duration time.Duration, err error)
	AddIngested(kind, outcome string, n int)
	SetRecordsTotal(kind string, count int)
	Handler() http.Handler
	Enabled() bool
}

type Provider struct {
	registry            *prometheus.Registry
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	persistenceFailures prometheus.Counter
	ingestedTotal       *prometheus.CounterVec
	recordsTotal        *prometheus.GaugeVec
}

// New returns a Prometheus-backed recorder on its own registry, or a no-op
// recorder when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return noopMetrics{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Provider{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ringvault_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ringvault_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ringvault_cache_hits_total",
			Help: "Total number of query cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ringvault_cache_misses_total",
			Help: "Total number of query cache misses",
		}),

		persistenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ringvault_persistence_duration_seconds",
			Help:    "Duration of snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		persistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ringvault_persistence_failures_total",
			Help: "Total number of failed snapshot writes",
		}),

		ingestedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ringvault_ingested_records_total",
			Help: "Records seen by ingestion, by kind and merge outcome",
		}, []string{"kind", "outcome"}),

		recordsTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringvault_records",
			Help: "Records currently stored per kind",
		}, []string{"kind"}),
	}
}

func (m *Provider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *Provider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Provider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *Provider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *Provider) ObservePersistence(duration time.Duration, err error) {
	m.persistenceDuration.Observe(duration.Seconds())
	if err != nil {
		m.persistenceFailures.Inc()
	}
}

func (m *Provider) AddIngested(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.ingestedTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

func (m *Provider) SetRecordsTotal(kind string, count int) {
	m.recordsTotal.WithLabelValues(kind).Set(float64(count))
}

func (m *Provider) Enabled() bool { return true }

func (m *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (noopMetrics) IncCacheHits()                                    {}
func (noopMetrics) IncCacheMisses()                                  {}
func (noopMetrics) ObservePersistence(_ time.Duration, _ error)      {}
func (noopMetrics) AddIngested(_, _ string, _ int)                   {}
func (noopMetrics) SetRecordsTotal(_ string, _ int)                  {}

func (noopMetrics) Handler() http.Handler { return http.NotFoundHandler() }

func (noopMetrics) Enabled() bool { return false }
