package metrics

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// MetricsEvent is the interface that every metric event must implement.
type MetricsEvent interface {
	// Store appends the event to the appropriate slice in the MetricsAgent
	// and updates the exported metrics.
	Store(mc *MetricsAgent)
	// Category returns the event's category.
	Category() string

	SetTimestamp(time.Time)
}

// MetricsJSON is the name of the artifact the collected events are flushed to.
const MetricsJSON = "cephci-metrics.json"

// MetricsAgent collects and aggregates metrics events.
type MetricsAgent struct {
	events chan MetricsEvent
	wg     sync.WaitGroup
	mu     sync.Mutex

	logger      *logrus.Entry
	fs          afero.Fs
	artifactDir string

	steps  []StepEvent
	suites []SuiteEvent
	runs   []PipelineEvent
}

// NewMetricsAgent creates and returns a new MetricsAgent. Events are flushed
// to artifactDir on fs when the agent stops; an empty artifactDir disables
// the flush. Run must be called exactly once.
func NewMetricsAgent(logger *logrus.Entry, fs afero.Fs, artifactDir string) *MetricsAgent {
	mc := &MetricsAgent{
		events:      make(chan MetricsEvent, 100),
		logger:      logger,
		fs:          fs,
		artifactDir: artifactDir,
	}
	mc.wg.Add(1)
	return mc
}

// Run listens for events on the events channel until the channel is closed.
// Once the events channel is closed, we flush the collected events.
func (mc *MetricsAgent) Run() {
	defer mc.wg.Done()
	for ev := range mc.events {
		mc.mu.Lock()
		ev.Store(mc)
		mc.mu.Unlock()
	}
	mc.flush()
}

// Record records an event to the MetricsAgent. It must not be called after Stop.
func (mc *MetricsAgent) Record(ev MetricsEvent) {
	ev.SetTimestamp(time.Now())
	mc.events <- ev
}

// Stop closes the events channel and blocks until flush completes.
func (mc *MetricsAgent) Stop() {
	close(mc.events)
	mc.wg.Wait()
}

// Steps returns the step events stored so far.
func (mc *MetricsAgent) Steps() []StepEvent {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]StepEvent(nil), mc.steps...)
}

// Suites returns the suite events stored so far.
func (mc *MetricsAgent) Suites() []SuiteEvent {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]SuiteEvent(nil), mc.suites...)
}

// PipelineRuns returns the pipeline events stored so far.
func (mc *MetricsAgent) PipelineRuns() []PipelineEvent {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]PipelineEvent(nil), mc.runs...)
}

// flush writes the accumulated events to a JSON file in the artifacts directory.
func (mc *MetricsAgent) flush() {
	if mc.artifactDir == "" {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.logger.Infof("Flushing %d step, %d suite and %d pipeline events", len(mc.steps), len(mc.suites), len(mc.runs))

	output := map[string]any{
		stepsCategory:    mc.steps,
		suitesCategory:   mc.suites,
		pipelineCategory: mc.runs,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		mc.logger.WithError(err).Error("Failed to marshal metrics")
		return
	}
	if err := mc.fs.MkdirAll(mc.artifactDir, 0755); err != nil {
		mc.logger.WithError(err).Error("Failed to create artifact directory")
		return
	}
	if err := afero.WriteFile(mc.fs, filepath.Join(mc.artifactDir, MetricsJSON), data, 0644); err != nil {
		mc.logger.WithError(err).Error("Failed to save metrics artifact")
	}
}

// Push sends the exported metrics to a Prometheus pushgateway under the job
// name. Metrics already pushed for the job are kept.
func Push(ctx context.Context, logger *logrus.Entry, gateway, job string) error {
	pusher := push.New(gateway, job)
	for _, collector := range collectors {
		pusher.Collector(collector)
	}
	logger.Info("pushing metrics to prometheus gateway")
	if err := pusher.AddContext(ctx); err != nil {
		return err
	}
	logger.Info("successfully pushed metrics to prometheus gateway")
	return nil
}
