package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/git"
	"github.com/red-hat-storage/cephci-tools/pkg/metrics"
	"github.com/red-hat-storage/cephci-tools/pkg/notification"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
	"github.com/red-hat-storage/cephci-tools/pkg/retry"
)

const (
	// DefaultUpdateAttempts is one attempt plus three retries.
	DefaultUpdateAttempts     = 4
	DefaultPreparationTimeout = 30 * time.Minute

	notifyTimeout = time.Minute
)

// DefaultBackoff spaces the update attempts.
var DefaultBackoff = wait.Backoff{Duration: 30 * time.Second, Factor: 2, Jitter: 0.1, Cap: 5 * time.Minute}

// Config describes what a run checks out and how hard it tries.
type Config struct {
	RepositoryURL string
	Branch        string
	Username      string
	Password      string
	// Workspace is emptied before the checkout and removed afterwards.
	Workspace          string
	PreparationTimeout time.Duration
	Retry              retry.Policy
}

// Trigger drives pipeline runs.
type Trigger struct {
	config   Config
	fs       afero.Fs
	cloner   git.Cloner
	loader   HelperLoader
	notifier notification.Notifier
	metrics  *metrics.MetricsAgent
	logger   *logrus.Entry
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithMetrics records terminal runs to the agent.
func WithMetrics(agent *metrics.MetricsAgent) Option {
	return func(t *Trigger) {
		t.metrics = agent
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(t *Trigger) {
		t.logger = logger
	}
}

func NewTrigger(config Config, fs afero.Fs, cloner git.Cloner, loader HelperLoader, notifier notification.Notifier, opts ...Option) *Trigger {
	if config.PreparationTimeout <= 0 {
		config.PreparationTimeout = DefaultPreparationTimeout
	}
	if config.Retry.Attempts <= 0 {
		config.Retry.Attempts = DefaultUpdateAttempts
	}
	t := &Trigger{
		config:   config,
		fs:       fs,
		cloner:   cloner,
		loader:   loader,
		notifier: notifier,
		logger:   logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Execute takes the run from PhasePreparing to a terminal phase and returns
// the terminal run. The workspace is released before Execute returns.
func (t *Trigger) Execute(ctx context.Context, run Run) Run {
	logger := t.logger.WithFields(logrus.Fields{"run": run.ID, "job": run.Job.Name, "build": run.Job.BuildNumber})
	logger.WithField("phase", run.Phase).Infof("Starting %s", run)

	run, helper, release := t.prepare(ctx, run, logger)
	if release != nil {
		defer release()
	}
	if !run.Phase.Terminal() {
		run = t.update(ctx, run, helper, logger)
	}
	if run.Phase == PhaseFailed {
		run = t.notify(ctx, run, logger)
	}

	switch run.Phase {
	case PhaseSuccess:
		logger.WithField("phase", run.Phase).Infof("Updated after %d attempts.", run.Attempts)
	case PhaseAborted:
		var failure *api.UpdateFailure
		if errors.As(run.Err, &failure) {
			logger.WithField("phase", run.Phase).Warnf("Aborted: %v", failure.Err)
		} else {
			logger.WithField("phase", run.Phase).Warnf("Aborted: %v", run.Err)
		}
	case PhaseFailed:
		logger.WithField("phase", run.Phase).WithError(run.Err).Error("Run failed.")
	}
	t.record(run)
	return run
}

// prepare acquires the workspace, checks out the helper repository and loads
// the helper, all within the preparation timeout.
func (t *Trigger) prepare(ctx context.Context, run Run, logger *logrus.Entry) (Run, Helper, func()) {
	logger = logger.WithField("phase", PhasePreparing)
	release, err := acquireWorkspace(t.fs, t.config.Workspace, logger)
	if err != nil {
		return run.failed(PhaseFailed, results.ForReason(results.ReasonPreparing).ForError(err)), nil, nil
	}
	run.Workspace = t.config.Workspace

	prepareCtx, cancel := context.WithTimeout(ctx, t.config.PreparationTimeout)
	defer cancel()
	commit, err := t.cloner.Clone(prepareCtx, git.CloneOptions{
		URL:      t.config.RepositoryURL,
		Branch:   t.config.Branch,
		Dir:      t.config.Workspace,
		Depth:    1,
		Username: t.config.Username,
		Password: t.config.Password,
	})
	if err == nil && prepareCtx.Err() != nil {
		err = prepareCtx.Err()
	}
	if err != nil {
		if preparationTimedOut(ctx, prepareCtx) {
			return run.failed(PhaseFailed, t.preparationTimeout(err)), nil, release
		}
		return run.failed(PhaseFailed, results.ForReason(results.ReasonPreparing).WithError(err).Errorf("failed to check out %s: %v", t.config.RepositoryURL, err)), nil, release
	}
	run.Commit = commit

	helper, err := t.loader.Load(prepareCtx, t.config.Workspace)
	if err == nil && prepareCtx.Err() != nil {
		err = prepareCtx.Err()
	}
	if err != nil {
		if preparationTimedOut(ctx, prepareCtx) {
			return run.failed(PhaseFailed, t.preparationTimeout(err)), nil, release
		}
		return run.failed(PhaseFailed, results.ForReason(results.ReasonLoadingConfig).WithError(err).Errorf("failed to load the pipeline helper: %v", err)), nil, release
	}
	logger.WithField("commit", commit).Info("Prepared workspace.")
	return run.to(PhaseUpdating), helper, release
}

// preparationTimedOut is true when the preparation deadline, not the caller,
// ended prepareCtx.
func preparationTimedOut(ctx, prepareCtx context.Context) bool {
	return errors.Is(prepareCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
}

func (t *Trigger) preparationTimeout(err error) error {
	return results.ForReason(results.ReasonPreparationTimedOut).ForError(&api.TimeoutFailure{
		Operation: "preparation",
		Timeout:   t.config.PreparationTimeout,
		Err:       err,
	})
}

// update calls the helper until it succeeds or the attempts are spent. Only
// spent attempts abort the run; anything else fails it.
func (t *Trigger) update(ctx context.Context, run Run, helper Helper, logger *logrus.Entry) Run {
	logger = logger.WithFields(logrus.Fields{"phase": PhaseUpdating, "release": run.Release})
	var attempts int
	_, err := retry.Do(ctx, t.config.Retry, func(ctx context.Context, attempt int) (struct{}, error) {
		attempts = attempt
		err := helper.Update(ctx, run.Release)
		if err != nil {
			logger.WithField("attempt", attempt).WithError(err).Warn("Update failed.")
		}
		return struct{}{}, err
	})
	run.Attempts = attempts
	if err == nil {
		return run.to(PhaseSuccess)
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return run.failed(PhaseAborted, results.ForReason(results.ReasonUpdateFailed).ForError(&api.UpdateFailure{
			Release:  run.Release,
			Attempts: exhausted.Attempts,
			Err:      exhausted.Last,
		}))
	}
	return run.failed(PhaseFailed, results.ForReason(results.ReasonInterrupted).ForError(err))
}

// notify announces a failed run. A failed announcement does not change the
// phase of the run.
func (t *Trigger) notify(ctx context.Context, run Run, logger *logrus.Entry) Run {
	if t.notifier == nil {
		return run
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	message := notification.Message{
		JobName:     run.Job.Name,
		BuildNumber: run.Job.BuildNumber,
		BuildURL:    run.Job.BuildURL,
		Release:     run.Release,
		Phase:       string(run.Phase),
		Reason:      results.FullReason(run.Err),
		Detail:      fmt.Sprintf("%v", run.Err),
	}
	if err := t.notifier.Notify(notifyCtx, message); err != nil {
		run.NotifyErr = results.ForReason(results.ReasonNotifying).ForError(err)
		logger.WithError(err).Error("Failed to send failure notification.")
	}
	return run
}

func (t *Trigger) record(run Run) {
	if t.metrics == nil {
		return
	}
	t.metrics.Record(&metrics.PipelineEvent{
		RunID:           run.ID,
		Job:             run.Job.Name,
		BuildNumber:     run.Job.BuildNumber,
		Release:         run.Release,
		Phase:           string(run.Phase),
		Attempts:        run.Attempts,
		Reason:          results.FullReason(run.Err),
		DurationSeconds: time.Since(run.Started).Seconds(),
	})
}
