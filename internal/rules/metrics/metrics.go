// Package metrics provides observability for the rule cache and the rule
// resolution path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rules module. A nil receiver is
// valid and records nothing, so tests need no registry.
type Metrics struct {
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheClears     *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all rules module metrics registered.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_rule_cache_hits_total",
			Help: "Rule cache lookups served from memory.",
		}, []string{"kind"}),

		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_rule_cache_misses_total",
			Help: "Rule cache lookups that fell through to the store.",
		}, []string{"kind"}),

		CacheClears: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_rule_cache_clears_total",
			Help: "Explicit cache invalidations.",
		}, []string{"scope"}),

		ResolveDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "juriscalc_rule_resolve_duration_seconds",
			Help:    "Time to resolve a rule set from the backing store on cache miss.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// IncrementHit records a cache lookup served from memory.
func (m *Metrics) IncrementHit(kind string) {
	if m != nil {
		m.CacheHits.WithLabelValues(kind).Inc()
	}
}

// IncrementMiss records a cache lookup that fell through to the store.
func (m *Metrics) IncrementMiss(kind string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}

// IncrementClear records an explicit invalidation.
func (m *Metrics) IncrementClear(scope string) {
	if m != nil {
		m.CacheClears.WithLabelValues(scope).Inc()
	}
}

// ObserveResolve records the store round-trip duration for a populate.
func (m *Metrics) ObserveResolve(kind string, d time.Duration) {
	if m != nil {
		m.ResolveDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}
