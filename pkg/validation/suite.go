package validation

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

// ValidateSuite checks that a suite document declares at least one step and
// that every step names a module.
func ValidateSuite(definition *api.SuiteDefinition) error {
	root := fieldPath("tests")
	if definition == nil || len(definition.Tests) == 0 {
		return root.errorf("at least one test is required")
	}
	var errs []error
	for i, step := range definition.Tests {
		field := root.addIndex(i)
		if step.Name == "" {
			errs = append(errs, field.addField("name").errorf("is required"))
		}
		if step.Module == "" {
			errs = append(errs, field.addField("module").errorf("is required"))
		}
		if step.TimeoutSeconds != nil && *step.TimeoutSeconds <= 0 {
			errs = append(errs, field.addField("timeout").errorf("must be positive, got %d", *step.TimeoutSeconds))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// ValidatePaths checks that the documents referenced by every record of the
// table exist below the catalogue root.
func ValidatePaths(fs afero.Fs, root string, table api.SuiteTable) error {
	var errs []error
	for i, record := range table {
		field := fieldPath("suites").addIndex(i)
		references := []reference{
			{field: field.addField("suite"), path: record.SuitePath},
			{field: field.addField("global-conf"), path: record.GlobalConfPath},
		}
		for _, env := range record.Environments() {
			references = append(references, reference{field: field.addField("inventory").addKey(env), path: record.Inventory[env]})
		}
		for _, ref := range references {
			if ref.path == "" {
				continue
			}
			if err := fileExists(fs, filepath.Join(root, ref.path)); err != nil {
				errs = append(errs, ref.field.errorf("%v", err))
			}
		}
	}
	return utilerrors.NewAggregate(errs)
}

type reference struct {
	field fieldPath
	path  string
}

func fileExists(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("%s does not exist", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
