package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "motorgestor"

// Lookup outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "upstream_unavailable"
	OutcomeUnparsable  = "unparsable"
	OutcomeInvalid     = "invalid"
)

// Metrics groups the collectors of the FIPE lookup path
type Metrics struct {
	registry *prometheus.Registry

	lookups  *prometheus.CounterVec
	cache    *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
// Go and process collectors are added when withRuntime is true.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: registry,
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fipe",
				Name:      "lookups_total",
				Help:      "FIPE lookups by outcome",
			},
			[]string{"outcome"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fipe",
				Name:      "cache_requests_total",
				Help:      "FIPE cache reads by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fipe",
				Name:      "upstream_request_duration_seconds",
				Help:      "Latency of upstream FIPE calls by step and status",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 8},
			},
			[]string{"step", "status"},
		),
	}

	registry.MustRegister(m.lookups, m.cache, m.upstream)

	return m
}

// ObserveLookup counts a finished lookup
func (m *Metrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

// ObserveCache counts a cache read
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// ObserveUpstream records one upstream call
func (m *Metrics) ObserveUpstream(step, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(step, status).Observe(elapsed.Seconds())
}

// LookupCounter exposes the counter for one outcome, used in tests
func (m *Metrics) LookupCounter(outcome string) prometheus.Counter {
	return m.lookups.WithLabelValues(outcome)
}

// CacheCounter exposes the counter for one cache result, used in tests
func (m *Metrics) CacheCounter(result string) prometheus.Counter {
	return m.cache.WithLabelValues(result)
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
