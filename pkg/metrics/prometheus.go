package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephci_steps_total",
			Help: "Suite steps by outcome",
		},
		[]string{"suite", "state"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cephci_step_duration_seconds",
			Help:    "Seconds spent in a suite step",
			Buckets: []float64{10, 60, 300, 600, 1800, 3600, 7200, 14400},
		},
		[]string{"suite", "module", "state"},
	)
	suiteRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephci_suite_runs_total",
			Help: "Suite runs by outcome and failure reason",
		},
		[]string{"suite", "state", "reason"},
	)
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cephci_pipeline_runs_total",
			Help: "Pipeline trigger runs by terminal phase",
		},
		[]string{"phase"},
	)
	updateAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cephci_pipeline_update_attempts",
			Help:    "Attempts spent on the update operation of a pipeline run",
			Buckets: []float64{1, 2, 3, 4},
		},
	)

	collectors = []prometheus.Collector{stepsTotal, stepDuration, suiteRunsTotal, pipelineRunsTotal, updateAttempts}
)

func init() {
	prometheus.MustRegister(collectors...)
}
