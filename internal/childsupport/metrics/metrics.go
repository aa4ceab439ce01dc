// Package metrics provides observability for the child-support calculator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the child-support module. A nil receiver
// is valid and records nothing, so tests need no registry.
type Metrics struct {
	Calculations        *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
	Warnings            prometheus.Counter
}

// New creates a Metrics instance with all child-support module metrics registered.
func New() *Metrics {
	return &Metrics{
		Calculations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_support_calculations_total",
			Help: "Child-support calculations by jurisdiction and outcome.",
		}, []string{"jurisdiction", "outcome"}),

		CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "juriscalc_support_calculation_duration_seconds",
			Help:    "End-to-end support calculation latency including guideline resolution.",
			Buckets: prometheus.DefBuckets,
		}),

		Warnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juriscalc_support_calculation_warnings_total",
			Help: "Warnings attached to support calculation results.",
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

// AddWarnings records the number of warnings attached to a result.
func (m *Metrics) AddWarnings(n int) {
	if m != nil {
		m.Warnings.Add(float64(n))
	}
}
