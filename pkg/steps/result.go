package steps

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"sigs.k8s.io/prow/pkg/secretutil"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/junit"
	"github.com/red-hat-storage/cephci-tools/pkg/polarion"
)

// State is the outcome of a step.
type State string

const (
	StatePassed  State = "passed"
	StateFailed  State = "failed"
	StateSkipped State = "skipped"
)

// StepResult is the outcome of a single step.
type StepResult struct {
	Step       api.TestStep
	State      State
	Err        error
	SkipReason string
	Duration   time.Duration
	Output     string
}

// SuiteResult is the outcome of a suite run, with one result per step in
// document order.
type SuiteResult struct {
	Target   Target
	Steps    []StepResult
	Duration time.Duration
	// Aborted is set when an abort-on-fail step failed.
	Aborted bool
	// Interrupted is set when the run was cancelled.
	Interrupted bool
}

// Counts returns the number of passed, failed and skipped steps.
func (r *SuiteResult) Counts() (passed, failed, skipped int) {
	for _, step := range r.Steps {
		switch step.State {
		case StatePassed:
			passed++
		case StateFailed:
			failed++
		case StateSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// JUnit converts the result to a jUnit test suite.
func (r *SuiteResult) JUnit() *junit.TestSuite {
	record := r.Target.Record
	suite := &junit.TestSuite{
		Name:     record.Name,
		Duration: r.Duration.Seconds(),
		Properties: []*junit.TestSuiteProperty{
			{Name: "platform", Value: record.Platform},
			{Name: "rhbuild", Value: record.BuildVersion},
			{Name: "clusters", Value: strings.Join(r.Target.Clusters, ",")},
		},
	}
	if destroy := r.destroyCluster(); destroy != nil {
		suite.Properties = append(suite.Properties, &junit.TestSuiteProperty{Name: "destroy-cluster", Value: strconv.FormatBool(*destroy)})
	}
	for _, step := range r.Steps {
		testCase := &junit.TestCase{
			Name:      step.Step.Name,
			Classname: step.Step.Module,
			Duration:  step.Duration.Seconds(),
			SystemOut: step.Output,
		}
		switch step.State {
		case StateFailed:
			testCase.FailureOutput = &junit.FailureOutput{Message: step.Err.Error(), Output: step.Output}
			suite.NumFailed++
		case StateSkipped:
			testCase.SkipMessage = &junit.SkipMessage{Message: step.SkipReason}
			suite.NumSkipped++
		}
		suite.NumTests++
		suite.TestCases = append(suite.TestCases, testCase)
	}
	return suite
}

// Polarion converts the result to a Polarion import document. Steps that
// carry a Polarion ID are linked to their test case.
func (r *SuiteResult) Polarion(projectID string) *polarion.TestSuite {
	record := r.Target.Record
	suite := polarion.NewTestSuite(record.Name, projectID, map[string]string{
		"platform": record.Platform,
		"rhbuild":  record.BuildVersion,
	})
	for _, step := range r.Steps {
		testCase := polarion.TestCase{
			Name:      step.Step.Name,
			Classname: step.Step.Module,
			Time:      step.Duration.Seconds(),
			SystemOut: step.Output,
		}
		if step.Step.PolarionID != "" {
			testCase.Properties.Property = append(testCase.Properties.Property, polarion.ID(step.Step.PolarionID))
		}
		switch step.State {
		case StateFailed:
			testCase.FailureMessage = &polarion.FailureMessage{Type: failureType(step.Err), Message: step.Err.Error()}
		case StateSkipped:
			testCase.Skipped = &polarion.Skipped{Message: step.SkipReason}
		}
		suite.Add(testCase)
	}
	return suite
}

// destroyCluster returns the teardown request of the last step expressing one.
func (r *SuiteResult) destroyCluster() *bool {
	var destroy *bool
	for _, step := range r.Steps {
		if step.Step.DestroyCluster != nil {
			destroy = step.Step.DestroyCluster
		}
	}
	return destroy
}

// ReportOptions controls how reports are written.
type ReportOptions struct {
	// Censor hides secrets in the written reports. It may be nil.
	Censor secretutil.Censorer
	// PolarionProject enables the Polarion report when set.
	PolarionProject string
}

// WriteReports writes the jUnit report and, when configured, the Polarion
// report for the result into dir and returns the written paths.
func WriteReports(fs afero.Fs, dir string, result *SuiteResult, options ReportOptions) ([]string, error) {
	slug := Slug(result.Target.Record.Name)
	junitSuite := result.JUnit()
	if options.Censor != nil {
		junit.CensorTestSuite(options.Censor, junitSuite)
	}
	junitPath := filepath.Join(dir, fmt.Sprintf("junit_%s.xml", slug))
	if err := junit.Write(fs, junitPath, &junit.TestSuites{Suites: []*junit.TestSuite{junitSuite}}); err != nil {
		return nil, err
	}
	written := []string{junitPath}
	if options.PolarionProject == "" {
		return written, nil
	}
	polarionSuite := result.Polarion(options.PolarionProject)
	if options.Censor != nil {
		for i := range polarionSuite.TestCases {
			polarionSuite.TestCases[i].SystemOut = censored(options.Censor, polarionSuite.TestCases[i].SystemOut)
			if failure := polarionSuite.TestCases[i].FailureMessage; failure != nil {
				failure.Message = censored(options.Censor, failure.Message)
			}
		}
	}
	polarionPath := filepath.Join(dir, fmt.Sprintf("polarion_%s.xml", slug))
	if err := polarion.Write(fs, polarionPath, polarionSuite); err != nil {
		return nil, err
	}
	return append(written, polarionPath), nil
}

// Slug turns a suite name into a file name fragment: `Tier-0 Fs` becomes
// `tier-0_fs`.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case !strings.HasSuffix(b.String(), "_"):
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func failureType(err error) string {
	if api.IsTimeout(err) {
		return "Timeout"
	}
	return "Failure"
}

func censored(censor secretutil.Censorer, value string) string {
	raw := []byte(value)
	censor.Censor(&raw)
	return string(raw)
}
