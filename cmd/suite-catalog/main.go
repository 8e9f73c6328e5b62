package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sigs.k8s.io/prow/pkg/interrupts"
	"sigs.k8s.io/prow/pkg/logrusutil"

	"github.com/red-hat-storage/cephci-tools/pkg/results"
)

type rootFlags struct {
	catalogueDir string
	logLevel     string
}

func (f *rootFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.catalogueDir, "catalogue-dir", ".", "Root of the suite catalogue. Paths in metadata tables are relative to it.")
	fs.StringVar(&f.logLevel, "log-level", "info", "Level at which to log output.")
}

func (f *rootFlags) Validate() error {
	level, err := logrus.ParseLevel(f.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logrus.SetLevel(level)
	if f.catalogueDir == "" {
		return fmt.Errorf("--catalogue-dir must not be empty")
	}
	return nil
}

// path resolves a path given on the command line against the catalogue.
func (f *rootFlags) path(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.catalogueDir, path)
}

func noArgs(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		if len(arg) > 0 {
			return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
		}
	}
	return nil
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "suite-catalog",
		Short:        "Query and check the suite catalogue",
		Long:         "Resolve suites by name, select them by tags and check metadata tables for defects",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return f.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	f.BindFlags(cmd.PersistentFlags())
	cmd.AddCommand(newResolveCommand(fs, f))
	cmd.AddCommand(newListCommand(fs, f))
	cmd.AddCommand(newCheckCommand(fs, f))
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, args []string) error {
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func main() {
	logrusutil.ComponentInit()
	if err := run(interrupts.Context(), newRootCommand(afero.NewOsFs()), nil); err != nil {
		logrus.WithError(err).WithField("reason", results.FullReason(err)).Fatal("Command failed")
	}
}
