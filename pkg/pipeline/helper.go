package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

// DefaultHelperPath is where the helper manifest lives in the checkout.
const DefaultHelperPath = "pipeline/helper.yaml"

const (
	// releaseVariable holds the target release in the environment of the
	// update command.
	releaseVariable    = "RELEASE"
	releasePlaceholder = "${" + releaseVariable + "}"
)

// Helper is the shared pipeline logic loaded from the checkout.
type Helper interface {
	// Update brings the environment to the release. An empty release means
	// no explicit version. Update must be idempotent as it is retried.
	Update(ctx context.Context, release string) error
}

// HelperLoader loads the helper from a checked out repository. Loading
// gives up once ctx is done.
type HelperLoader interface {
	Load(ctx context.Context, checkout string) (Helper, error)
}

// HelperManifest describes how to invoke the helper.
type HelperManifest struct {
	Update Command `json:"update"`
}

// Command is a process invocation. ${RELEASE} in the arguments and the
// environment is replaced with the target release.
type Command struct {
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
	// Dir is relative to the checkout, defaulting to its root.
	Dir string `json:"dir,omitempty"`
}

// ManifestLoader reads a HelperManifest and runs its commands.
type ManifestLoader struct {
	Fs afero.Fs
	// Path is relative to the checkout, DefaultHelperPath when empty.
	Path   string
	Output io.Writer
	Logger *logrus.Entry
}

func (l *ManifestLoader) Load(ctx context.Context, checkout string) (Helper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.Path
	if path == "" {
		path = DefaultHelperPath
	}
	path = filepath.Join(checkout, path)
	raw, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &api.NotFoundError{Kind: "file", Name: path}
		}
		return nil, fmt.Errorf("failed to read helper manifest: %w", err)
	}
	manifest := HelperManifest{}
	if err := yaml.UnmarshalStrict(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse helper manifest %s: %w", path, err)
	}
	if len(manifest.Update.Command) == 0 {
		return nil, fmt.Errorf("helper manifest %s: update.command is required", path)
	}
	return &execHelper{
		checkout: checkout,
		update:   manifest.Update,
		output:   l.Output,
		logger:   l.Logger,
	}, nil
}

type execHelper struct {
	checkout string
	update   Command
	output   io.Writer
	logger   *logrus.Entry
}

func (h *execHelper) args(release string) []string {
	replacer := strings.NewReplacer(releasePlaceholder, release)
	var args []string
	for _, arg := range h.update.Command {
		args = append(args, replacer.Replace(arg))
	}
	return args
}

func (h *execHelper) env(release string) []string {
	replacer := strings.NewReplacer(releasePlaceholder, release)
	env := os.Environ()
	var keys []string
	for key := range h.update.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, replacer.Replace(h.update.Env[key])))
	}
	return append(env, fmt.Sprintf("%s=%s", releaseVariable, release))
}

func (h *execHelper) Update(ctx context.Context, release string) error {
	args := h.args(release)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Join(h.checkout, h.update.Dir)
	cmd.Env = h.env(release)
	cmd.WaitDelay = 5 * time.Second
	output := h.output
	if output == nil {
		output = io.Discard
	}
	cmd.Stdout = output
	cmd.Stderr = output
	h.logger.WithField("command", args).Info("Running update.")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("update command %s failed: %w", args[0], err)
	}
	return nil
}
