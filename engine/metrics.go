package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes run-level counters. Recording is fire-and-forget; metric
// failures never influence a run.
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	stepsTotal  *prometheus.CounterVec
	runDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botflow",
			Name:      "runs_total",
			Help:      "Completed interpreter runs by termination reason.",
		}, []string{"reason"}),
		stepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botflow",
			Name:      "steps_total",
			Help:      "Executed block steps by block type.",
		}, []string{"block_type"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "botflow",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of one interpreter run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeRun(reason TerminationReason, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(reason)).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) observeStep(blockType BlockType) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(string(blockType)).Inc()
}
