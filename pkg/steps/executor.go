// Package steps drives the steps of a suite through the test execution
// engine, one at a time and in the order the suite document lists them.
package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/metrics"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
)

// ContinuationPolicy decides what happens after a step without abort-on-fail
// fails.
type ContinuationPolicy string

const (
	// ContinueOnFailure runs the remaining steps.
	ContinueOnFailure ContinuationPolicy = "continue"
	// StopOnFailure skips the remaining steps.
	StopOnFailure ContinuationPolicy = "stop"
)

// ParseContinuationPolicy parses a policy name.
func ParseContinuationPolicy(value string) (ContinuationPolicy, error) {
	switch policy := ContinuationPolicy(value); policy {
	case ContinueOnFailure, StopOnFailure:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown continuation policy %q, expected %q or %q", value, ContinueOnFailure, StopOnFailure)
	}
}

// Target describes what a suite runs against.
type Target struct {
	Record         api.SuiteRecord
	GlobalConfPath string
	InventoryPath  string
	// Clusters are the cluster names declared by the global configuration.
	Clusters []string
}

// Executor runs the steps of a suite.
type Executor struct {
	runner  ModuleRunner
	policy  ContinuationPolicy
	metrics *metrics.MetricsAgent
	logger  *logrus.Entry
	now     func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy sets the continuation policy.
func WithPolicy(policy ContinuationPolicy) Option {
	return func(e *Executor) {
		e.policy = policy
	}
}

// WithMetrics records step and suite outcomes to the agent.
func WithMetrics(agent *metrics.MetricsAgent) Option {
	return func(e *Executor) {
		e.metrics = agent
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor returns an executor handing steps to the runner.
func NewExecutor(runner ModuleRunner, opts ...Option) *Executor {
	e := &Executor{
		runner: runner,
		policy: ContinueOnFailure,
		logger: logrus.NewEntry(logrus.StandardLogger()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the steps strictly in order. A failed step with abort-on-fail
// set, or any failed step under StopOnFailure, ends the run and the remaining
// steps are reported as skipped. The same happens when ctx is cancelled. The
// returned error aggregates every step failure.
func (e *Executor) Execute(ctx context.Context, target Target, steps []api.TestStep) (*SuiteResult, error) {
	logger := e.logger.WithField("suite", target.Record.Name)
	logger.Infof("Running %d steps against clusters %v", len(steps), target.Clusters)
	start := e.now()
	result := &SuiteResult{Target: target}

	var errs []error
	var skipReason string
	for i, step := range steps {
		if skipReason == "" && ctx.Err() != nil {
			skipReason = "suite was interrupted"
			result.Interrupted = true
		}
		if skipReason != "" {
			logger.WithField("step", step.Name).Debugf("Skipping step: %s.", skipReason)
			skippedStep := StepResult{Step: step, State: StateSkipped, SkipReason: skipReason}
			result.Steps = append(result.Steps, skippedStep)
			e.record(target.Record.Name, skippedStep)
			continue
		}

		stepResult := e.runStep(ctx, logger, target, i, step)
		result.Steps = append(result.Steps, stepResult)
		e.record(target.Record.Name, stepResult)
		if stepResult.Err == nil {
			continue
		}
		errs = append(errs, results.Classify(stepResult.Err))
		switch {
		case step.AbortOnFail:
			skipReason = fmt.Sprintf("step %q failed and aborts the suite", step.Name)
			result.Aborted = true
		case e.policy == StopOnFailure:
			skipReason = fmt.Sprintf("step %q failed", step.Name)
		}
	}
	if ctx.Err() != nil {
		result.Interrupted = true
		errs = append(errs, results.ForReason(results.ReasonInterrupted).ForError(fmt.Errorf("suite %s was interrupted: %w", target.Record.Name, ctx.Err())))
	}
	result.Duration = e.now().Sub(start)

	var err error = utilerrors.NewAggregate(errs)
	if err != nil && result.Aborted {
		err = results.ForReason(results.ReasonSuiteAborted).WithError(err).Errorf("suite %s aborted: %v", target.Record.Name, err)
	}

	passed, failed, skipped := result.Counts()
	logger.Infof("Suite finished after %s: %d passed, %d failed, %d skipped.", result.Duration.Truncate(time.Second), passed, failed, skipped)
	if e.metrics != nil {
		state := string(StatePassed)
		if err != nil {
			state = string(StateFailed)
		}
		e.metrics.Record(&metrics.SuiteEvent{
			Suite:           target.Record.Name,
			Platform:        target.Record.Platform,
			Build:           target.Record.BuildVersion,
			State:           state,
			Reason:          results.FullReason(err),
			Passed:          passed,
			Failed:          failed,
			Skipped:         skipped,
			DurationSeconds: result.Duration.Seconds(),
		})
	}
	return result, err
}

func (e *Executor) runStep(ctx context.Context, logger *logrus.Entry, target Target, index int, step api.TestStep) StepResult {
	logger = logger.WithFields(logrus.Fields{"step": step.Name, "module": step.Module})
	stepCtx := ctx
	var timeout time.Duration
	if step.TimeoutSeconds != nil {
		timeout = time.Duration(*step.TimeoutSeconds) * time.Second
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("Running step.")
	var output bytes.Buffer
	start := e.now()
	err := e.runner.Run(stepCtx, StepRequest{
		Suite:          target.Record,
		Step:           step,
		Index:          index,
		GlobalConfPath: target.GlobalConfPath,
		InventoryPath:  target.InventoryPath,
		Output:         &output,
	})
	duration := e.now().Sub(start)

	result := StepResult{Step: step, State: StatePassed, Duration: duration, Output: output.String()}
	// a module outliving its deadline fails even when it reports success
	timedOut := timeout > 0 && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded)
	switch {
	case timedOut:
		if err == nil {
			err = stepCtx.Err()
		}
		result.Err = &api.TimeoutFailure{Operation: fmt.Sprintf("step %q", step.Name), Timeout: timeout, Err: err}
	case err != nil:
		result.Err = &api.StepFailure{Step: step.Name, Module: step.Module, Err: err}
	}
	if result.Err != nil {
		result.State = StateFailed
		logger.WithError(result.Err).Warnf("Step failed after %s.", duration.Truncate(time.Second))
		return result
	}
	logger.Infof("Step succeeded after %s.", duration.Truncate(time.Second))
	return result
}

func (e *Executor) record(suite string, step StepResult) {
	if e.metrics == nil {
		return
	}
	var reason string
	if step.Err != nil {
		reason = results.FullReason(results.Classify(step.Err))
	}
	e.metrics.Record(&metrics.StepEvent{
		Suite:           suite,
		Step:            step.Step.Name,
		Module:          step.Step.Module,
		PolarionID:      step.Step.PolarionID,
		State:           string(step.State),
		Reason:          reason,
		DurationSeconds: step.Duration.Seconds(),
	})
}
