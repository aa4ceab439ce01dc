// Package metrics provides observability for the update scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the scheduler module. A nil receiver is
// valid and records nothing, so tests need no registry.
type Metrics struct {
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	Scans       prometheus.Counter
}

// New creates a Metrics instance with all scheduler module metrics registered.
func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juriscalc_update_runs_total",
			Help: "Update runs by data type, status, and trigger source.",
		}, []string{"data_type", "status", "source"}),

		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "juriscalc_update_run_duration_seconds",
			Help:    "Ingestion run duration per data type.",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		}, []string{"data_type"}),

		Scans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juriscalc_scheduler_scans_total",
			Help: "Periodic due-entry scans executed.",
		}),
	}
}

// IncrementRun records an update run outcome.
func (m *Metrics) IncrementRun(dataType, status, source string) {
	if m != nil {
		m.Runs.WithLabelValues(dataType, status, source).Inc()
	}
}

// ObserveRunDuration records how long an ingestion run took.
func (m *Metrics) ObserveRunDuration(dataType string, d time.Duration) {
	if m != nil {
		m.RunDuration.WithLabelValues(dataType).Observe(d.Seconds())
	}
}

// IncrementScan records a periodic due-entry scan.
func (m *Metrics) IncrementScan() {
	if m != nil {
		m.Scans.Inc()
	}
}
