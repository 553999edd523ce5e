// Package metrics holds the Prometheus collectors for the valuation pipeline.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	FetchLive      = "live"
	FetchSynthetic = "synthetic"
	FetchError     = "error"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
	CacheError = "error"
)

// Valuation results.
const (
	ValuationAvailable   = "available"
	ValuationUnavailable = "unavailable"
)

// Metrics groups the collectors registered on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	fetches      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	valuations   *prometheus.CounterVec
}

// New creates and registers all collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_fetch_total",
			Help:      "Pricing API fetches by outcome (live, synthetic, error).",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuation_cache_lookups_total",
			Help:      "Postcode series cache lookups by result.",
		}, []string{"result"}),
		valuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "valuation_requests_total",
			Help:      "Local-average valuation requests by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.fetches, m.cacheLookups, m.valuations)
	return m
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveValuation(result string) {
	if m == nil {
		return
	}
	m.valuations.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
