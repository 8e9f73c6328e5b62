package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
	"github.com/red-hat-storage/cephci-tools/pkg/load"
	"github.com/red-hat-storage/cephci-tools/pkg/resolver"
	"github.com/red-hat-storage/cephci-tools/pkg/results"
)

type tableFlags struct {
	table string
}

func (f *tableFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.table, "table", "", "Metadata table to query, relative to the catalogue.")
}

func (f *tableFlags) Validate() error {
	if f.table == "" {
		return fmt.Errorf("--table is required")
	}
	return nil
}

func (f *tableFlags) resolver(fs afero.Fs, root *rootFlags) (resolver.Resolver, error) {
	table, err := load.Table(fs, root.path(f.table))
	if err != nil {
		return nil, results.ForReason(results.ReasonLoadingConfig).ForError(err)
	}
	return resolver.NewResolver(table, fs, root.catalogueDir), nil
}

// resolution is what resolve prints: the record and a summary of the
// documents it references.
type resolution struct {
	api.SuiteRecord
	Clusters []string `json:"clusters"`
	Steps    []string `json:"steps"`
}

func newResolveCommand(fs afero.Fs, root *rootFlags) *cobra.Command {
	f := &tableFlags{}
	cmd := &cobra.Command{
		Use:   "resolve NAME",
		Short: "Resolve a suite by name",
		Long:  "Print the record of the suite with the given name together with the clusters and steps of the documents it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}
			r, err := f.resolver(fs, root)
			if err != nil {
				return err
			}
			resolved, err := r.Resolve(cmd.Context(), args[0])
			if err != nil {
				return results.Classify(err)
			}
			out := resolution{SuiteRecord: resolved.Record, Clusters: resolved.GlobalConfig.Clusters()}
			for _, step := range resolved.Definition.Tests {
				out.Steps = append(out.Steps, step.Name)
			}
			raw, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", resolved.Record.Name, err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
