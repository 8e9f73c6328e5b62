package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/metrics"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
	"github.com/red-hat-storage/cephci-tools/pkg/steps"
	"github.com/red-hat-storage/cephci-tools/pkg/testhelper"
)

func TestValidate(t *testing.T) {
	var testCases = []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name: "minimal",
			args: []string{"--table=metadata/pacific.yaml", "--suite=Tier-0 Fs", "--engine=python", "--engine=run.py"},
		},
		{
			name:     "nothing set",
			expected: "--engine is required, --suite is required, --table is required",
		},
		{
			name:     "unknown policy",
			args:     []string{"--table=metadata/pacific.yaml", "--suite=Tier-0 Fs", "--engine=run.py", "--on-failure=retry"},
			expected: `invalid --on-failure: unknown continuation policy "retry", expected "continue" or "stop"`,
		},
		{
			name:     "polarion without artifacts",
			args:     []string{"--table=metadata/pacific.yaml", "--suite=Tier-0 Fs", "--engine=run.py", "--polarion-project=CEPH"},
			expected: "--artifact-dir is required to write reports",
		},
		{
			name:     "upload without credentials",
			args:     []string{"--table=metadata/pacific.yaml", "--suite=Tier-0 Fs", "--engine=run.py", "--artifact-dir=/tmp/artifacts", "--gcs-bucket=cephci-results"},
			expected: "--gcs-credentials-file is required with --gcs-bucket",
		},
		{
			name:     "reporting username without password",
			args:     []string{"--table=metadata/pacific.yaml", "--suite=Tier-0 Fs", "--engine=run.py", "--report-username=cephci"},
			expected: "--report-{username|password-file} must be set together or not at all",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			o, err := gatherOptions(flag.NewFlagSet(testCase.name, flag.ContinueOnError), testCase.args)
			if err != nil {
				t.Fatalf("failed to gather options: %v", err)
			}
			var actual string
			if err := o.validate(); err != nil {
				actual = err.Error()
			}
			testhelper.Diff(t, "error", testCase.expected, actual)
		})
	}
}

func TestGatherOptionsEngine(t *testing.T) {
	o, err := gatherOptions(flag.NewFlagSet(t.Name(), flag.ContinueOnError), []string{"--engine=python", "--engine=run.py", "--engine=--log-level=debug"})
	if err != nil {
		t.Fatalf("failed to gather options: %v", err)
	}
	testhelper.Diff(t, "engine", []string{"python", "run.py", "--log-level=debug"}, o.engine.Strings())
}

const metadata = `- name: Tier-0 Fs
  suite: suites/pacific/cephfs/tier-0_fs.yaml
  global-conf: conf/pacific/cephfs/tier-0_fs.yaml
  platform: rhel-8
  rhbuild: "5.3"
  inventory:
    openstack: conf/inventory/rhel-8-latest.yaml
  metadata:
    - tier-0
    - cephfs
`

func catalogue(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	testhelper.WriteFiles(t, fs, map[string]string{
		"/catalogue/metadata/pacific.yaml": metadata,
		"/catalogue/suites/pacific/cephfs/tier-0_fs.yaml": `tests:
  - test:
      name: setup install pre-requisistes
      module: install_prereq.py
      abort-on-fail: true
  - test:
      name: cephfs basic operations
      module: cephfs_basic_tests.py
      polarion-id: CEPH-11293
`,
		"/catalogue/conf/pacific/cephfs/tier-0_fs.yaml": "globals:\n  - ceph-cluster:\n      name: ceph\n",
	})
	return fs
}

type fakeRunner struct {
	requests []steps.StepRequest
	fail     map[string]string
}

func (f *fakeRunner) Run(_ context.Context, request steps.StepRequest) error {
	f.requests = append(f.requests, request)
	if message, ok := f.fail[request.Step.Module]; ok {
		if request.Output != nil {
			if _, err := request.Output.Write([]byte(message)); err != nil {
				return err
			}
		}
		return errors.New(message)
	}
	return nil
}

func agent(t *testing.T) *metrics.MetricsAgent {
	agent := metrics.NewMetricsAgent(logrus.WithField("test", t.Name()), afero.NewMemMapFs(), "")
	go agent.Run()
	t.Cleanup(agent.Stop)
	return agent
}

func TestRunSuite(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "ceph-key")
	if err := os.WriteFile(secretFile, []byte("AQBx5TNkS3cr3t==\n"), 0600); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}
	fs := catalogue(t)
	runner := &fakeRunner{fail: map[string]string{"cephfs_basic_tests.py": "mount -o secret=AQBx5TNkS3cr3t== failed"}}
	o := options{
		catalogueDir:    "/catalogue",
		table:           "metadata/pacific.yaml",
		suite:           "Tier-0 Fs",
		environment:     "openstack",
		policy:          string(steps.ContinueOnFailure),
		artifactDir:     "/artifacts",
		polarionProject: "CEPH",
	}
	if err := o.censorSecrets.Set(secretFile); err != nil {
		t.Fatalf("failed to set secret: %v", err)
	}

	result, written, err := runSuite(context.Background(), o, fs, runner, agent(t), logrus.WithField("test", t.Name()))
	testhelper.Diff(t, "reason", "step_failed", results.FullReason(err))
	testhelper.Diff(t, "written", []string{"/artifacts/junit_tier-0_fs.xml", "/artifacts/polarion_tier-0_fs.xml"}, written)
	testhelper.Diff(t, "target", steps.Target{
		Record:         result.Target.Record,
		GlobalConfPath: "/catalogue/conf/pacific/cephfs/tier-0_fs.yaml",
		InventoryPath:  "/catalogue/conf/inventory/rhel-8-latest.yaml",
		Clusters:       []string{"ceph"},
	}, result.Target)
	var modules []string
	for _, request := range runner.requests {
		modules = append(modules, request.Step.Module)
	}
	testhelper.Diff(t, "modules", []string{"install_prereq.py", "cephfs_basic_tests.py"}, modules)

	for _, path := range written {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if strings.Contains(string(raw), "AQBx5TNkS3cr3t==") {
			t.Errorf("%s leaks the secret", path)
		}
	}
}

func TestRunSuiteErrors(t *testing.T) {
	var testCases = []struct {
		name           string
		mutate         func(*options)
		expectedReason string
		expectedErr    error
	}{
		{
			name:           "unknown suite",
			mutate:         func(o *options) { o.suite = "Tier-3 Nfs" },
			expectedReason: "suite_not_found",
		},
		{
			name:           "missing table",
			mutate:         func(o *options) { o.table = "metadata/quincy.yaml" },
			expectedReason: "loading_config",
		},
		{
			name:           "unknown environment",
			mutate:         func(o *options) { o.environment = "baremetal" },
			expectedReason: "loading_config",
			expectedErr:    &api.NotFoundError{Kind: "inventory", Name: "baremetal"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			o := options{catalogueDir: "/catalogue", table: "metadata/pacific.yaml", suite: "Tier-0 Fs", policy: string(steps.StopOnFailure)}
			testCase.mutate(&o)
			runner := &fakeRunner{}
			result, _, err := runSuite(context.Background(), o, catalogue(t), runner, agent(t), logrus.WithField("test", t.Name()))
			testhelper.Diff(t, "reason", testCase.expectedReason, results.FullReason(err))
			if result != nil || len(runner.requests) != 0 {
				t.Error("nothing must run when the suite cannot be resolved")
			}
			if testCase.expectedErr != nil {
				var notFound *api.NotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("expected a NotFoundError, got %v", err)
				}
				testhelper.Diff(t, "error", testCase.expectedErr, notFound)
			}
		})
	}
}
