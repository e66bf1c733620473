package main

import (
	"github.com/spf13/cobra"
)

// rootFlags holds persistent flags shared by every subcommand.
type rootFlags struct {
	verbose bool
	vars    []string
}

func newRootCmd(app *AppContext) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor runs declarative ETL pipelines described in TOML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug-level logging")
	cmd.PersistentFlags().StringArrayVar(&flags.vars, "var", nil, "Pipeline variable in key=value form; repeatable")

	cmd.AddCommand(newRunCmd(flags, app))
	cmd.AddCommand(newValidateCmd(flags, app))
	cmd.AddCommand(newPluginsCmd(app))

	return cmd
}
