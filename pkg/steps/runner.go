package steps

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

// waitDelay bounds how long output is drained once the engine was killed.
const waitDelay = 5 * time.Second

// StepRequest is everything the test execution engine needs to run a step.
type StepRequest struct {
	Suite api.SuiteRecord
	Step  api.TestStep
	// Index is the position of the step in the suite document.
	Index int
	// GlobalConfPath and InventoryPath are resolved file system paths.
	GlobalConfPath string
	InventoryPath  string
	// Output receives whatever the module prints. It may be nil.
	Output io.Writer
}

// ModuleRunner hands a step to the test execution engine and reports whether
// the module succeeded. Implementations must return once ctx is done.
type ModuleRunner interface {
	Run(ctx context.Context, request StepRequest) error
}

// ExecRunner runs every step as a process of the test execution engine. The
// step configuration is written to a temporary YAML file whose path is passed
// to the engine together with the suite context.
type ExecRunner struct {
	// Command is the engine entrypoint, e.g. `python run.py`.
	Command []string
	// Fs holds the temporary configuration files. The engine reads them, so
	// it must be backed by the operating system.
	Fs     afero.Fs
	Logger *logrus.Entry
}

// NewExecRunner returns a runner invoking the engine command.
func NewExecRunner(command []string, logger *logrus.Entry) *ExecRunner {
	return &ExecRunner{Command: command, Fs: afero.NewOsFs(), Logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, request StepRequest) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("no engine command configured")
	}
	logger := r.Logger.WithFields(logrus.Fields{"step": request.Step.Name, "module": request.Step.Module})

	configPath, cleanup, err := r.writeConfig(request.Step)
	if err != nil {
		return err
	}
	defer cleanup()

	args := append(append([]string{}, r.Command[1:]...), engineArgs(request, configPath)...)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	output := request.Output
	if output == nil {
		output = io.Discard
	}
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = waitDelay
	logger.Debugf("Running %s %s", r.Command[0], strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("module %s exited: %w", request.Step.Module, err)
	}
	return nil
}

func (r *ExecRunner) writeConfig(step api.TestStep) (string, func(), error) {
	config := step.Config
	if config == nil {
		config = map[string]interface{}{}
	}
	raw, err := yaml.Marshal(config)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal the configuration of step %q: %w", step.Name, err)
	}
	file, err := afero.TempFile(r.Fs, "", "cephci-step-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create the configuration file of step %q: %w", step.Name, err)
	}
	cleanup := func() {
		if err := r.Fs.Remove(file.Name()); err != nil {
			r.Logger.WithError(err).Debugf("Failed to remove %s", file.Name())
		}
	}
	if _, err := file.Write(raw); err != nil {
		_ = file.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write the configuration of step %q: %w", step.Name, err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write the configuration of step %q: %w", step.Name, err)
	}
	return file.Name(), cleanup, nil
}

func engineArgs(request StepRequest, configPath string) []string {
	args := []string{
		"--module", request.Step.Module,
		"--config", configPath,
		"--global-conf", request.GlobalConfPath,
	}
	if request.InventoryPath != "" {
		args = append(args, "--inventory", request.InventoryPath)
	}
	if request.Suite.BuildVersion != "" {
		args = append(args, "--build", request.Suite.BuildVersion)
	}
	if request.Suite.Platform != "" {
		args = append(args, "--platform", request.Suite.Platform)
	}
	return args
}
