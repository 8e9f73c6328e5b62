package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"sigs.k8s.io/prow/pkg/config/secret"
	"sigs.k8s.io/prow/pkg/interrupts"
	"sigs.k8s.io/prow/pkg/logrusutil"

	"github.com/red-hat-storage/cephci-tools/pkg/git"
	"github.com/red-hat-storage/cephci-tools/pkg/metrics"
	"github.com/red-hat-storage/cephci-tools/pkg/notification"
	"github.com/red-hat-storage/cephci-tools/pkg/pipeline"
	"github.com/red-hat-storage/cephci-tools/pkg/retry"
)

// releaseEnv is the build parameter naming the release to update to.
const releaseEnv = "releaseName"

// exitAborted marks runs that gave up after retrying the update.
const exitAborted = 2

type options struct {
	logLevel           string
	repository         string
	branch             string
	usernameFile       string
	passwordFile       string
	workspace          string
	helperPath         string
	release            string
	preparationTimeout time.Duration
	attempts           int
	backoff            time.Duration
	artifactDir        string
	metricsGateway     string
	metricsJob         string

	notification notification.Options
}

func gatherOptions(fs *flag.FlagSet, args []string) (options, error) {
	o := options{}
	fs.StringVar(&o.logLevel, "log-level", "info", "Level at which to log output.")
	fs.StringVar(&o.repository, "repository", "https://github.com/red-hat-storage/cephci.git", "Repository holding the pipeline helper.")
	fs.StringVar(&o.branch, "branch", "", "Branch of the repository to check out.")
	fs.StringVar(&o.usernameFile, "username-file", "", "File holding the username used to clone the repository.")
	fs.StringVar(&o.passwordFile, "password-file", "", "File holding the password or token used to clone the repository.")
	fs.StringVar(&o.workspace, "workspace", "", "Directory the repository is checked out into. Its content is removed.")
	fs.StringVar(&o.helperPath, "helper", pipeline.DefaultHelperPath, "Helper manifest, relative to the checkout.")
	fs.StringVar(&o.release, "release-name", os.Getenv(releaseEnv), "Release to update to. Defaults to the releaseName build parameter, may be empty.")
	fs.DurationVar(&o.preparationTimeout, "preparation-timeout", pipeline.DefaultPreparationTimeout, "Bound on cleaning the workspace, checking out and loading the helper.")
	fs.IntVar(&o.attempts, "update-attempts", pipeline.DefaultUpdateAttempts, "Total number of update attempts.")
	fs.DurationVar(&o.backoff, "update-backoff", pipeline.DefaultBackoff.Duration, "Initial wait between update attempts, doubled after every failure.")
	fs.StringVar(&o.artifactDir, "artifact-dir", "", "Directory the run metrics are written to.")
	fs.StringVar(&o.metricsGateway, "metrics-gateway", "", "Prometheus pushgateway to push metrics to.")
	fs.StringVar(&o.metricsJob, "metrics-job", "cephci-pipeline-trigger", "Job name metrics are pushed under.")
	o.notification.Bind(fs)
	if err := fs.Parse(args); err != nil {
		return o, fmt.Errorf("failed to parse flags: %w", err)
	}
	return o, nil
}

func (o *options) validate() error {
	var errs []string
	if _, err := logrus.ParseLevel(o.logLevel); err != nil {
		errs = append(errs, fmt.Sprintf("invalid --log-level: %v", err))
	}
	for param, value := range map[string]string{
		"--repository": o.repository,
		"--branch":     o.branch,
		"--workspace":  o.workspace,
	} {
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s is required", param))
		}
	}
	if (o.usernameFile == "") != (o.passwordFile == "") {
		errs = append(errs, "--{username|password}-file must be set together or not at all")
	}
	if o.preparationTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("--preparation-timeout must be positive, got %s", o.preparationTimeout))
	}
	if o.attempts < 1 {
		errs = append(errs, fmt.Sprintf("--update-attempts must be at least 1, got %d", o.attempts))
	}
	if o.backoff < 0 {
		errs = append(errs, fmt.Sprintf("--update-backoff must not be negative, got %s", o.backoff))
	}
	if err := o.notification.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

func (o *options) config() (pipeline.Config, error) {
	backoff := pipeline.DefaultBackoff
	backoff.Duration = o.backoff
	config := pipeline.Config{
		RepositoryURL:      o.repository,
		Branch:             o.branch,
		Workspace:          o.workspace,
		PreparationTimeout: o.preparationTimeout,
		Retry:              retry.Policy{Attempts: o.attempts, Backoff: backoff},
	}
	if o.usernameFile == "" {
		return config, nil
	}
	if err := secret.Add(o.usernameFile, o.passwordFile); err != nil {
		return pipeline.Config{}, fmt.Errorf("failed to load repository credentials: %w", err)
	}
	config.Username = strings.TrimSpace(string(secret.GetSecret(o.usernameFile)))
	config.Password = strings.TrimSpace(string(secret.GetSecret(o.passwordFile)))
	return config, nil
}

// exitCode maps the terminal phase of a run to the exit code of the process.
func exitCode(phase pipeline.Phase) int {
	switch phase {
	case pipeline.PhaseSuccess:
		return 0
	case pipeline.PhaseAborted:
		return exitAborted
	default:
		return 1
	}
}

func main() {
	logrusutil.ComponentInit()
	o, err := gatherOptions(flag.NewFlagSet(os.Args[0], flag.ExitOnError), os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("failed to gather options")
	}
	if err := o.validate(); err != nil {
		logrus.WithError(err).Fatal("invalid options")
	}
	level, _ := logrus.ParseLevel(o.logLevel)
	logrus.SetLevel(level)

	job, err := pipeline.JobFromEnvironment()
	if err != nil {
		logrus.WithError(err).Fatal("failed to read the build environment")
	}
	config, err := o.config()
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure the checkout")
	}
	logger := logrus.WithField("component", "pipeline-trigger")
	notifier, err := o.notification.Notifier(logger)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure notifications")
	}

	fs := afero.NewOsFs()
	agent := metrics.NewMetricsAgent(logger, fs, o.artifactDir)
	go agent.Run()

	ctx := interrupts.Context()
	loader := &pipeline.ManifestLoader{Fs: fs, Path: o.helperPath, Output: os.Stdout, Logger: logger}
	trigger := pipeline.NewTrigger(config, fs, git.NewClient(logger, nil), loader, notifier, pipeline.WithMetrics(agent), pipeline.WithLogger(logger))
	run := trigger.Execute(ctx, pipeline.NewRun(job, o.release))
	agent.Stop()

	if o.metricsGateway != "" {
		if err := metrics.Push(ctx, logger, o.metricsGateway, o.metricsJob); err != nil {
			logger.WithError(err).Warn("Failed to push metrics.")
		}
	}
	os.Exit(exitCode(run.Phase))
}
