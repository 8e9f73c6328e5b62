package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"sigs.k8s.io/prow/pkg/config/secret"
	"sigs.k8s.io/prow/pkg/flagutil"
	"sigs.k8s.io/prow/pkg/interrupts"
	"sigs.k8s.io/prow/pkg/logrusutil"
	"sigs.k8s.io/prow/pkg/secretutil"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/artifacts"
	"github.com/red-hat-storage/cephci-tools/pkg/junit"
	"github.com/red-hat-storage/cephci-tools/pkg/load"
	"github.com/red-hat-storage/cephci-tools/pkg/metrics"
	"github.com/red-hat-storage/cephci-tools/pkg/resolver"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
	"github.com/red-hat-storage/cephci-tools/pkg/steps"
)

type options struct {
	logLevel        string
	catalogueDir    string
	table           string
	suite           string
	environment     string
	engine          flagutil.Strings
	policy          string
	artifactDir     string
	polarionProject string
	censorSecrets   flagutil.Strings
	metricsGateway  string
	metricsJob      string

	results   results.Options
	artifacts artifacts.Options
}

func gatherOptions(fs *flag.FlagSet, args []string) (options, error) {
	o := options{}
	fs.StringVar(&o.logLevel, "log-level", "info", "Level at which to log output.")
	fs.StringVar(&o.catalogueDir, "catalogue-dir", ".", "Root of the suite catalogue. Paths in metadata tables are relative to it.")
	fs.StringVar(&o.table, "table", "", "Metadata table holding the suite, relative to the catalogue.")
	fs.StringVar(&o.suite, "suite", "", "Name of the suite to run.")
	fs.StringVar(&o.environment, "environment", "", "Inventory environment to run in, e.g. openstack. No inventory is passed when unset.")
	fs.Var(&o.engine, "engine", "Entrypoint of the test execution engine, one argument per occurrence.")
	fs.StringVar(&o.policy, "on-failure", string(steps.ContinueOnFailure), "What to do after a step without abort-on-fail failed: continue or stop.")
	fs.StringVar(&o.artifactDir, "artifact-dir", "", "Directory reports and metrics are written to.")
	fs.StringVar(&o.polarionProject, "polarion-project", "", "Polarion project the suite reports to. The Polarion report is skipped when unset.")
	fs.Var(&o.censorSecrets, "censor-secret", "File holding a secret to hide in reports. Can be passed multiple times.")
	fs.StringVar(&o.metricsGateway, "metrics-gateway", "", "Prometheus pushgateway to push metrics to.")
	fs.StringVar(&o.metricsJob, "metrics-job", "cephci-suite-runner", "Job name metrics are pushed under.")
	o.results.Bind(fs)
	o.artifacts.Bind(fs)
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
		"--table": o.table,
		"--suite": o.suite,
	} {
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s is required", param))
		}
	}
	if len(o.engine.Strings()) == 0 {
		errs = append(errs, "--engine is required")
	}
	if _, err := steps.ParseContinuationPolicy(o.policy); err != nil {
		errs = append(errs, fmt.Sprintf("invalid --on-failure: %v", err))
	}
	if o.artifactDir == "" && (o.polarionProject != "" || o.artifacts.Enabled()) {
		errs = append(errs, "--artifact-dir is required to write reports")
	}
	if err := o.results.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := o.artifacts.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

// target resolves the paths the engine is handed.
func (o *options) target(resolved *resolver.ResolvedSuite) (steps.Target, error) {
	target := steps.Target{
		Record:         resolved.Record,
		GlobalConfPath: filepath.Join(o.catalogueDir, resolved.Record.GlobalConfPath),
		Clusters:       resolved.GlobalConfig.Clusters(),
	}
	if o.environment == "" {
		return target, nil
	}
	inventory, ok := resolved.Record.InventoryFor(o.environment)
	if !ok {
		return steps.Target{}, &api.NotFoundError{Kind: "inventory", Name: o.environment}
	}
	target.InventoryPath = filepath.Join(o.catalogueDir, inventory)
	return target, nil
}

// censor hides the content of the secret files in reports.
func (o *options) censor() (secretutil.Censorer, error) {
	paths := o.censorSecrets.Strings()
	if len(paths) == 0 {
		return nil, nil
	}
	if err := secret.Add(paths...); err != nil {
		return nil, fmt.Errorf("failed to load secrets to censor: %w", err)
	}
	var secrets []string
	for _, path := range paths {
		secrets = append(secrets, strings.TrimSpace(string(secret.GetSecret(path))))
	}
	return junit.NewCensorer(secrets...), nil
}

// runSuite resolves the suite, runs its steps and writes the reports. The
// returned error is reason-tagged.
func runSuite(ctx context.Context, o options, fs afero.Fs, runner steps.ModuleRunner, agent *metrics.MetricsAgent, logger *logrus.Entry) (*steps.SuiteResult, []string, error) {
	table, err := load.Table(fs, filepath.Join(o.catalogueDir, o.table))
	if err != nil {
		return nil, nil, results.ForReason(results.ReasonLoadingConfig).ForError(err)
	}
	resolved, err := resolver.NewResolver(table, fs, o.catalogueDir).Resolve(ctx, o.suite)
	if err != nil {
		return nil, nil, results.Classify(err)
	}
	target, err := o.target(resolved)
	if err != nil {
		return nil, nil, results.ForReason(results.ReasonLoadingConfig).ForError(err)
	}
	policy, err := steps.ParseContinuationPolicy(o.policy)
	if err != nil {
		return nil, nil, err
	}

	executor := steps.NewExecutor(runner, steps.WithPolicy(policy), steps.WithMetrics(agent), steps.WithLogger(logger))
	result, runErr := executor.Execute(ctx, target, resolved.Definition.Tests)
	if o.artifactDir == "" {
		return result, nil, runErr
	}
	censor, err := o.censor()
	if err != nil {
		return result, nil, utilerrors.NewAggregate([]error{runErr, err})
	}
	written, err := steps.WriteReports(fs, o.artifactDir, result, steps.ReportOptions{Censor: censor, PolarionProject: o.polarionProject})
	if err != nil {
		return result, written, utilerrors.NewAggregate([]error{runErr, fmt.Errorf("failed to write reports: %w", err)})
	}
	for _, path := range written {
		logger.WithField("path", path).Info("Wrote report.")
	}
	return result, written, runErr
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

	ctx := interrupts.Context()
	runID := uuid.NewString()
	logger := logrus.WithFields(logrus.Fields{"run": runID, "suite": o.suite})
	fs := afero.NewOsFs()

	agent := metrics.NewMetricsAgent(logger, fs, o.artifactDir)
	go agent.Run()

	runner := steps.NewExecRunner(o.engine.Strings(), logger)
	result, written, err := runSuite(ctx, o, fs, runner, agent, logger)
	agent.Stop()

	if o.metricsGateway != "" {
		if pushErr := metrics.Push(ctx, logger, o.metricsGateway, o.metricsJob); pushErr != nil {
			logger.WithError(pushErr).Warn("Failed to push metrics.")
		}
	}
	if o.artifacts.Enabled() {
		files := append(written, filepath.Join(o.artifactDir, metrics.MetricsJSON))
		if urls, uploadErr := o.artifacts.Uploader(fs, logger).Upload(ctx, runID, files); uploadErr != nil {
			logger.WithError(uploadErr).Warn("Failed to upload reports.")
		} else {
			logger.WithField("urls", urls).Info("Uploaded reports.")
		}
	}

	subject := results.Subject{Suite: o.suite, RunID: runID}
	if result != nil {
		subject.Platform = result.Target.Record.Platform
		subject.Build = result.Target.Record.BuildVersion
	}
	reporter, reportErr := o.results.Reporter(subject)
	if reportErr != nil {
		logger.WithError(reportErr).Warn("Could not load result reporting options.")
	} else {
		reporter.Report(err)
	}

	if result != nil {
		passed, failed, skipped := result.Counts()
		logger.Infof("Suite finished after %s: %d passed, %d failed, %d skipped.", result.Duration.Truncate(time.Millisecond), passed, failed, skipped)
	}
	if err != nil {
		logger.WithError(err).WithField("reason", results.FullReason(err)).Fatal("Suite failed.")
	}
}
