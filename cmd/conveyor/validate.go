package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validateOptions struct {
	configPath string
}

func newValidateCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and build a pipeline's DAG without executing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePipeline(cmd, root, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to the pipeline TOML document (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func validatePipeline(cmd *cobra.Command, root *rootFlags, app *AppContext, opts *validateOptions) error {
	vars, err := parseVars(root.vars)
	if err != nil {
		return err
	}

	prepared, err := app.Pipeline.Prepare(cmd.Context(), opts.configPath, vars)
	if err != nil {
		return err
	}
	defer prepared.Close(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q is valid: %d stage(s) across %d level(s)\n",
		prepared.Config.Pipeline.Name, len(prepared.Config.Stages), len(prepared.Graph.Levels))
	return nil
}
