package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Op names a write issued to a surface.
type Op string

const (
	OpCreate Op = "create"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
)

// Pass outcomes recorded in metrics.
const (
	outcomeConverged = "converged"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Metrics records reconciliation activity. A nil *Metrics records nothing.
type Metrics struct {
	passes   *prometheus.CounterVec
	writes   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the engine collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "reconcile",
			Name:      "passes_total",
			Help:      "Reconciliation passes by outcome.",
		}, []string{"outcome"}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "reconcile",
			Name:      "writes_total",
			Help:      "Writes issued to display surfaces by operation.",
		}, []string{"op"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of completed and failed passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (m *Metrics) observeWrite(op Op) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) observePass(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(outcome).Inc()
	if outcome != outcomeSkipped {
		m.duration.Observe(elapsed.Seconds())
	}
}
