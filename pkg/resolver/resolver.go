// Package resolver answers questions about the suites of a metadata table:
// which record a name refers to, which records a tag selection matches and
// which documents a suite needs to run.
package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/load"
)

// Resolver answers lookups against a metadata table.
type Resolver interface {
	ByName(name string) (api.SuiteRecord, error)
	Filter(predicates ...api.RecordPredicate) []api.SuiteRecord
	Resolve(ctx context.Context, name string) (*ResolvedSuite, error)
}

// ResolvedSuite is a record together with the documents it references.
type ResolvedSuite struct {
	Record       api.SuiteRecord
	Definition   *api.SuiteDefinition
	GlobalConfig *api.GlobalConfig
}

type resolver struct {
	table api.SuiteTable
	fs    afero.Fs
	root  string
}

// NewResolver returns a resolver over the table. Paths in the records are
// relative to root on fs.
func NewResolver(table api.SuiteTable, fs afero.Fs, root string) Resolver {
	return &resolver{table: table, fs: fs, root: root}
}

// ByName returns the only record with the given name.
func (r *resolver) ByName(name string) (api.SuiteRecord, error) {
	var matches []int
	for i, record := range r.table {
		if record.Name == name {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return api.SuiteRecord{}, &api.NotFoundError{Kind: "suite", Name: name}
	case 1:
		return r.table[matches[0]], nil
	default:
		return api.SuiteRecord{}, &api.AmbiguousNameError{Name: name, Indices: matches}
	}
}

// Filter returns the records every predicate selects, in table order.
func (r *resolver) Filter(predicates ...api.RecordPredicate) []api.SuiteRecord {
	var selected []api.SuiteRecord
	for _, record := range r.table {
		if matchesAll(record, predicates) {
			selected = append(selected, record)
		}
	}
	return selected
}

func matchesAll(record api.SuiteRecord, predicates []api.RecordPredicate) bool {
	for _, predicate := range predicates {
		if !predicate(record) {
			return false
		}
	}
	return true
}

// Resolve looks the suite up by name and loads its suite definition and
// global configuration.
func (r *resolver) Resolve(ctx context.Context, name string) (*ResolvedSuite, error) {
	record, err := r.ByName(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suitePath, err := r.existing(record.SuitePath)
	if err != nil {
		return nil, err
	}
	confPath, err := r.existing(record.GlobalConfPath)
	if err != nil {
		return nil, err
	}
	definition, err := load.Suite(r.fs, suitePath)
	if err != nil {
		return nil, err
	}
	conf, err := load.GlobalConfig(r.fs, confPath)
	if err != nil {
		return nil, err
	}
	return &ResolvedSuite{Record: record, Definition: definition, GlobalConfig: conf}, nil
}

func (r *resolver) existing(path string) (string, error) {
	if path == "" {
		return "", &api.NotFoundError{Kind: "file", Name: path}
	}
	full := filepath.Join(r.root, path)
	info, err := r.fs.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &api.NotFoundError{Kind: "file", Name: path}
		}
		return "", err
	}
	if info.IsDir() {
		return "", &api.NotFoundError{Kind: "file", Name: path}
	}
	return full, nil
}
