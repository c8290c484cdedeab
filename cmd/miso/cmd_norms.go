package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) normsCmd() *cobra.Command {
	var (
		library bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "norms",
		Short: "Print the loaded norm tables or intervention library",
		Long: `Print the norm tables (or, with --library, the intervention library) the
engine would run on, after applying norms_file and library_file overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.load()
			if err != nil {
				return err
			}
			var v any = e.tables
			if library {
				v = e.tables.Library
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, v)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(v); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("--format: unknown format %q (want yaml or json)", format)
			}
		},
	}
	cmd.Flags().BoolVar(&library, "library", false, "Print the intervention library instead")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	return cmd
}
