package steps

import (
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/junit"
	"github.com/red-hat-storage/cephci-tools/pkg/polarion"
	"github.com/red-hat-storage/cephci-tools/pkg/testhelper"
)

func sampleResult() *SuiteResult {
	destroy := true
	s := suiteSteps()
	s[3].DestroyCluster = &destroy
	return &SuiteResult{
		Target:   tier0Fs(),
		Duration: 90 * time.Second,
		Steps: []StepResult{
			{Step: s[0], State: StatePassed, Duration: 30 * time.Second, Output: "installed"},
			{Step: s[1], State: StatePassed, Duration: 60 * time.Second},
			{Step: s[2], State: StateFailed, Err: &api.StepFailure{Step: s[2].Name, Module: s[2].Module, Err: errors.New("mount failed with key s3cr3t")}, Output: "mounting with key s3cr3t"},
			{Step: s[3], State: StateSkipped, SkipReason: `step "cephfs basic operations" failed`},
		},
	}
}

func TestJUnit(t *testing.T) {
	suite := sampleResult().JUnit()
	testhelper.Diff(t, "counters", []uint{4, 1, 1}, []uint{suite.NumTests, suite.NumFailed, suite.NumSkipped})
	testhelper.Diff(t, "properties", []*junit.TestSuiteProperty{
		{Name: "platform", Value: "rhel-8"},
		{Name: "rhbuild", Value: "5.3"},
		{Name: "clusters", Value: "ceph"},
		{Name: "destroy-cluster", Value: "true"},
	}, suite.Properties)
	testhelper.Diff(t, "failure", &junit.FailureOutput{
		Message: `step "cephfs basic operations" (cephfs_basic_tests.py) failed: mount failed with key s3cr3t`,
		Output:  "mounting with key s3cr3t",
	}, suite.TestCases[2].FailureOutput)
	testhelper.Diff(t, "skip", &junit.SkipMessage{Message: `step "cephfs basic operations" failed`}, suite.TestCases[3].SkipMessage)
	testhelper.Diff(t, "classname", "install_prereq.py", suite.TestCases[0].Classname)
}

func TestPolarion(t *testing.T) {
	suite := sampleResult().Polarion("CEPH")
	testhelper.Diff(t, "counters", []int{4, 1, 1}, []int{suite.Tests, suite.Failures, suite.Skipped})
	testhelper.Diff(t, "linked case", []polarion.Property{polarion.ID("CEPH-11293")}, suite.TestCases[2].Properties.Property)
	if len(suite.TestCases[0].Properties.Property) != 0 {
		t.Errorf("steps without a Polarion ID must not be linked, got %v", suite.TestCases[0].Properties.Property)
	}
	testhelper.Diff(t, "failure type", "Failure", suite.TestCases[2].FailureMessage.Type)

	timedOut := sampleResult()
	timedOut.Steps[2].Err = &api.TimeoutFailure{Operation: "step", Timeout: time.Second}
	testhelper.Diff(t, "timeout type", "Timeout", timedOut.Polarion("CEPH").TestCases[2].FailureMessage.Type)
}

func TestWriteReports(t *testing.T) {
	fs := afero.NewMemMapFs()
	written, err := WriteReports(fs, "/artifacts", sampleResult(), ReportOptions{
		Censor:          junit.NewCensorer("s3cr3t"),
		PolarionProject: "CEPH",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelper.Diff(t, "written", []string{"/artifacts/junit_tier-0_fs.xml", "/artifacts/polarion_tier-0_fs.xml"}, written)
	for _, path := range written {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if strings.Contains(string(raw), "s3cr3t") {
			t.Errorf("%s leaks a secret:\n%s", path, raw)
		}
	}

	raw, err := afero.ReadFile(fs, "/artifacts/junit_tier-0_fs.xml")
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	suites := &junit.TestSuites{}
	if err := xml.Unmarshal(raw, suites); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	testhelper.Diff(t, "suite name", "Tier-0 Fs", suites.Suites[0].Name)

	written, err = WriteReports(fs, "/other", sampleResult(), ReportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelper.Diff(t, "written without polarion", []string{"/other/junit_tier-0_fs.xml"}, written)
}

func TestSlug(t *testing.T) {
	for in, expected := range map[string]string{
		"Tier-0 Fs":                     "tier-0_fs",
		"Tier-2 Rgw  Multisite":         "tier-2_rgw_multisite",
		" Sanity (RBD) ":                "sanity_rbd",
		"5.3 Upgrade/Regression checks": "5.3_upgrade_regression_checks",
	} {
		if actual := Slug(in); actual != expected {
			t.Errorf("%q: expected %q, got %q", in, expected, actual)
		}
	}
}
