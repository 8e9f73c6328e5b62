// Package load reads the documents of a suite catalogue: metadata tables,
// suite definitions and global configuration files.
package load

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

// SourcedTable is a metadata table together with the file it was read from.
type SourcedTable struct {
	Path  string
	Table api.SuiteTable
}

// Table reads a single metadata file.
func Table(fs afero.Fs, path string) (api.SuiteTable, error) {
	var table api.SuiteTable
	if err := readYAML(fs, path, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// Tables reads every metadata file found under root, sorted by path. Hidden
// files and directories (prefixed with `.` or `..`, as in mounted
// ConfigMaps) are skipped, as is everything that is not a YAML file.
func Tables(fs afero.Fs, root string) ([]SourcedTable, error) {
	var tables []SourcedTable
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") || !isYAML(info.Name()) {
			return nil
		}
		table, err := Table(fs, path)
		if err != nil {
			return err
		}
		logrus.WithField("path", path).Debugf("Loaded %d suite records.", len(table))
		tables = append(tables, SourcedTable{Path: path, Table: table})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata from %s: %w", root, err)
	}
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Path < tables[j].Path
	})
	return tables, nil
}

// Merge concatenates tables in the given order.
func Merge(tables []SourcedTable) api.SuiteTable {
	var merged api.SuiteTable
	for _, table := range tables {
		merged = append(merged, table.Table...)
	}
	return merged
}

// Suite reads a suite definition document.
func Suite(fs afero.Fs, path string) (*api.SuiteDefinition, error) {
	definition := &api.SuiteDefinition{}
	if err := readYAML(fs, path, definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// GlobalConfig reads a global configuration document.
func GlobalConfig(fs afero.Fs, path string) (*api.GlobalConfig, error) {
	conf := &api.GlobalConfig{}
	if err := readYAML(fs, path, conf); err != nil {
		return nil, err
	}
	return conf, nil
}

func readYAML(fs afero.Fs, path string, into interface{}) error {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
