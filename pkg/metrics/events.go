package metrics

import (
	"time"
)

const (
	stepsCategory    = "steps"
	suitesCategory   = "suites"
	pipelineCategory = "pipeline_runs"
)

// StepEvent is the outcome of a single suite step.
type StepEvent struct {
	Suite           string    `json:"suite"`
	Step            string    `json:"step"`
	Module          string    `json:"module"`
	PolarionID      string    `json:"polarion_id,omitempty"`
	State           string    `json:"state"`
	Reason          string    `json:"reason,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e *StepEvent) Store(mc *MetricsAgent) {
	mc.steps = append(mc.steps, *e)
	stepsTotal.WithLabelValues(e.Suite, e.State).Inc()
	stepDuration.WithLabelValues(e.Suite, e.Module, e.State).Observe(e.DurationSeconds)
}

func (e *StepEvent) Category() string {
	return stepsCategory
}

func (e *StepEvent) SetTimestamp(t time.Time) {
	e.Timestamp = t
}

// SuiteEvent is the outcome of a suite run.
type SuiteEvent struct {
	Suite           string    `json:"suite"`
	Platform        string    `json:"platform,omitempty"`
	Build           string    `json:"build,omitempty"`
	State           string    `json:"state"`
	Reason          string    `json:"reason,omitempty"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	DurationSeconds float64   `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e *SuiteEvent) Store(mc *MetricsAgent) {
	mc.suites = append(mc.suites, *e)
	suiteRunsTotal.WithLabelValues(e.Suite, e.State, e.Reason).Inc()
}

func (e *SuiteEvent) Category() string {
	return suitesCategory
}

func (e *SuiteEvent) SetTimestamp(t time.Time) {
	e.Timestamp = t
}

// PipelineEvent is the terminal state of a pipeline trigger run.
type PipelineEvent struct {
	RunID           string    `json:"run_id"`
	Job             string    `json:"job,omitempty"`
	BuildNumber     string    `json:"build_number,omitempty"`
	Release         string    `json:"release,omitempty"`
	Phase           string    `json:"phase"`
	Attempts        int       `json:"attempts"`
	Reason          string    `json:"reason,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e *PipelineEvent) Store(mc *MetricsAgent) {
	mc.runs = append(mc.runs, *e)
	pipelineRunsTotal.WithLabelValues(e.Phase).Inc()
	if e.Attempts > 0 {
		updateAttempts.Observe(float64(e.Attempts))
	}
}

func (e *PipelineEvent) Category() string {
	return pipelineCategory
}

func (e *PipelineEvent) SetTimestamp(t time.Time) {
	e.Timestamp = t
}
