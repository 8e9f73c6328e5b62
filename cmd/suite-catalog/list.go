package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/red-hat-storage/cephci-tools/pkg/api"
)

const (
	outputName = "name"
	outputYAML = "yaml"
)

type listFlags struct {
	tableFlags
	selector string
	platform string
	minBuild string
	output   string
}

func (f *listFlags) BindFlags(fs *pflag.FlagSet) {
	f.tableFlags.BindFlags(fs)
	fs.StringVar(&f.selector, "tags", "", "Tag selector, e.g. tier-2,rgw,!sanity.")
	fs.StringVar(&f.platform, "platform", "", "Only list suites for this platform.")
	fs.StringVar(&f.minBuild, "min-build", "", "Only list suites qualifying this build or a later one.")
	fs.StringVarP(&f.output, "output", "o", outputName, "Output format, one of name or yaml.")
}

func (f *listFlags) Validate() error {
	if err := f.tableFlags.Validate(); err != nil {
		return err
	}
	if f.output != outputName && f.output != outputYAML {
		return fmt.Errorf("--output must be %s or %s, got %q", outputName, outputYAML, f.output)
	}
	return nil
}

// predicates turns the flags into record predicates.
func (f *listFlags) predicates() ([]api.RecordPredicate, error) {
	tags, err := api.ParseTagSelector(f.selector)
	if err != nil {
		return nil, err
	}
	predicates := []api.RecordPredicate{api.WithTags(tags)}
	if f.platform != "" {
		predicates = append(predicates, api.OnPlatform(f.platform))
	}
	if f.minBuild != "" {
		atLeast, err := api.BuildAtLeast(f.minBuild)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, atLeast)
	}
	return predicates, nil
}

func newListCommand(fs afero.Fs, root *rootFlags) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suites matching a selection",
		Long:  "List the suites of a metadata table matching the tag selector, platform and build, in table order",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.Validate(); err != nil {
				return err
			}
			predicates, err := f.predicates()
			if err != nil {
				return err
			}
			r, err := f.resolver(fs, root)
			if err != nil {
				return err
			}
			records := r.Filter(predicates...)
			out := cmd.OutOrStdout()
			if f.output == outputYAML {
				raw, err := yaml.Marshal(api.SuiteTable(records))
				if err != nil {
					return fmt.Errorf("failed to marshal records: %w", err)
				}
				_, err = out.Write(raw)
				return err
			}
			for _, record := range records {
				if _, err := fmt.Fprintln(out, record.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}
