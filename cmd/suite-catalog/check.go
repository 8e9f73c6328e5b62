package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/red-hat-storage/cephci-tools/pkg/load"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
	"github.com/red-hat-storage/cephci-tools/pkg/validation"
)

type checkFlags struct {
	metadataDir string
	skipPaths   bool
}

func (f *checkFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.metadataDir, "metadata-dir", "", "Directory holding the metadata tables, relative to the catalogue.")
	fs.BoolVar(&f.skipPaths, "skip-paths", false, "Do not check that referenced documents exist.")
}

func (f *checkFlags) Validate() error {
	if f.metadataDir == "" {
		return fmt.Errorf("--metadata-dir is required")
	}
	return nil
}

func newCheckCommand(fs afero.Fs, root *rootFlags) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the metadata tables and the suites they reference",
		Long:  "Validate every metadata table below a directory, the documents its records reference and the suites themselves",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}
			tables, err := load.Tables(fs, root.path(f.metadataDir))
			if err != nil {
				return results.ForReason(results.ReasonLoadingConfig).ForError(err)
			}
			if err := check(fs, root.catalogueDir, tables, !f.skipPaths); err != nil {
				return results.ForReason(results.ReasonInvalidConfig).ForError(err)
			}
			logrus.Infof("Checked %d metadata tables.", len(tables))
			return nil
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}

// check validates every table on its own and every suite document once.
// Names repeated across tables are reported but are not an error.
func check(fs afero.Fs, catalogueDir string, tables []load.SourcedTable, paths bool) error {
	var errs []error
	checked := sets.New[string]()
	for _, table := range tables {
		logger := logrus.WithField("table", table.Path)
		if err := validation.ValidateTable(table.Table); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table.Path, err))
		}
		if !paths {
			continue
		}
		if err := validation.ValidatePaths(fs, catalogueDir, table.Table); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table.Path, err))
		}
		for _, record := range table.Table {
			if record.SuitePath == "" || checked.Has(record.SuitePath) {
				continue
			}
			checked.Insert(record.SuitePath)
			path := filepath.Join(catalogueDir, record.SuitePath)
			if exists, _ := afero.Exists(fs, path); !exists {
				logger.WithField("suite", record.SuitePath).Debug("Skipping missing suite.")
				continue
			}
			definition, err := load.Suite(fs, path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := validation.ValidateSuite(definition); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", record.SuitePath, err))
			}
		}
	}
	for _, duplicate := range validation.DuplicatesAcrossTables(tables) {
		logrus.WithField("paths", duplicate.Paths).Warnf("Suite %q is defined by more than one table.", duplicate.Name)
	}
	return utilerrors.NewAggregate(errs)
}
