// Package metrics provides observability for the tax calculator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the tax module. A nil receiver is valid
// and records nothing, so tests need no registry.
type Metrics struct {
	Calculations        *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
}

// New creates a Metrics instance with all tax module metrics registered.
func New() *Metrics {
	return &Metrics{
		Calculations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_tax_calculations_total",
			Help: "Tax calculations by jurisdiction and outcome.",
		}, []string{"jurisdiction", "outcome"}),

		CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "juriscalc_tax_calculation_duration_seconds",
			Help:    "End-to-end tax calculation latency including rule resolution.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncrementCalculation records a calculation outcome.
func (m *Metrics) IncrementCalculation(jurisdiction, outcome string) {
	if m != nil {
		m.Calculations.WithLabelValues(jurisdiction, outcome).Inc()
	}
}

// ObserveDuration records the end-to-end calculation duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.CalculationDuration.Observe(d.Seconds())
	}
}
