package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by clients.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	Invalidations   *prometheus.CounterVec
	DiscardedWrites *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil)
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "crystalcache"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of client requests, including cache hits",
			},
			[]string{"client", "method", "source"}, // source: cache, network, error
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Network request duration in seconds, retries included",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"client", "method"},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of request cache hits",
			},
			[]string{"client"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of request cache misses",
			},
			[]string{"client"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retried attempts",
			},
			[]string{"client"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed requests by kind",
			},
			[]string{"client", "kind"},
		),
		Invalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidations_total",
				Help:      "Total number of cache invalidations triggered by mutations",
			},
			[]string{"client", "policy"},
		),
		DiscardedWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discarded_writes_total",
				Help:      "Responses not cached because a newer write or invalidation superseded them",
			},
			[]string{"client"},
		),
	}
}

func (m *Metrics) request(client, method, source string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(client, method, source).Inc()
}

func (m *Metrics) observe(client, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(client, method).Observe(d.Seconds())
}

func (m *Metrics) cacheHit(client string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(client).Inc()
}

func (m *Metrics) cacheMiss(client string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(client).Inc()
}

func (m *Metrics) retry(client string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(client).Inc()
}

func (m *Metrics) failure(client, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(client, kind).Inc()
}

func (m *Metrics) invalidation(client string, policy InvalidationPolicy) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(client, policy.String()).Inc()
}

func (m *Metrics) discarded(client string) {
	if m == nil {
		return
	}
	m.DiscardedWrites.WithLabelValues(client).Inc()
}
