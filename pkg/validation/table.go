package validation

import (
	"sort"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/load"
)

// ValidateTable checks that every record of a metadata table is complete and
// that suite names are unique within the table. Every problem is reported,
// not only the first one.
func ValidateTable(table api.SuiteTable) error {
	root := fieldPath("suites")
	var errs []error
	for i, record := range table {
		errs = append(errs, validateRecord(root.addIndex(i), record)...)
	}
	errs = append(errs, duplicateNames(table)...)
	return utilerrors.NewAggregate(errs)
}

func validateRecord(field fieldPath, record api.SuiteRecord) []error {
	var errs []error
	for _, required := range []struct {
		name, value string
	}{
		{name: "name", value: record.Name},
		{name: "suite", value: record.SuitePath},
		{name: "global-conf", value: record.GlobalConfPath},
		{name: "platform", value: record.Platform},
		{name: "rhbuild", value: record.BuildVersion},
	} {
		if required.value == "" {
			errs = append(errs, field.addField(required.name).errorf("is required"))
		}
	}

	inventory := field.addField("inventory")
	if len(record.Inventory) == 0 {
		errs = append(errs, inventory.errorf("at least one environment is required"))
	}
	for _, env := range record.Environments() {
		if record.Inventory[env] == "" {
			errs = append(errs, inventory.addKey(env).errorf("path is required"))
		}
	}

	metadata := field.addField("metadata")
	seen := sets.New[string]()
	for i, tag := range record.Metadata {
		switch {
		case tag == "":
			errs = append(errs, metadata.addIndex(i).errorf("tag must not be empty"))
		case seen.Has(tag):
			errs = append(errs, metadata.addIndex(i).errorf("duplicate tag %q", tag))
		}
		seen.Insert(tag)
	}
	return errs
}

func duplicateNames(table api.SuiteTable) []error {
	indices := map[string][]int{}
	var order []string
	for i, record := range table {
		if record.Name == "" {
			continue
		}
		if _, seen := indices[record.Name]; !seen {
			order = append(order, record.Name)
		}
		indices[record.Name] = append(indices[record.Name], i)
	}
	var errs []error
	for _, name := range order {
		if len(indices[name]) > 1 {
			errs = append(errs, &api.AmbiguousNameError{Name: name, Indices: indices[name]})
		}
	}
	return errs
}

// Duplicate is a suite name defined by more than one metadata file.
type Duplicate struct {
	Name  string
	Paths []string
}

// DuplicatesAcrossTables lists suite names that appear in more than one of
// the tables. Names repeated within a single table are left to ValidateTable.
func DuplicatesAcrossTables(tables []load.SourcedTable) []Duplicate {
	definedIn := map[string]sets.Set[string]{}
	for _, table := range tables {
		for _, record := range table.Table {
			if _, ok := definedIn[record.Name]; !ok {
				definedIn[record.Name] = sets.New[string]()
			}
			definedIn[record.Name].Insert(table.Path)
		}
	}
	var duplicates []Duplicate
	for name, paths := range definedIn {
		if paths.Len() > 1 {
			duplicates = append(duplicates, Duplicate{Name: name, Paths: sets.List(paths)})
		}
	}
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].Name < duplicates[j].Name
	})
	return duplicates
}
