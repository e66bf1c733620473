package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conveyor/conveyor/internal/pipeline"
)

type runOptions struct {
	configPath string
}

func newRunCmd(root *rootFlags, app *AppContext) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline document end to end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to the pipeline TOML document (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runPipeline(cmd *cobra.Command, root *rootFlags, app *AppContext, opts *runOptions) error {
	vars, err := parseVars(root.vars)
	if err != nil {
		return err
	}

	log := app.Logger
	if root.verbose {
		log.Debug("verbose logging enabled")
	}

	outcome, err := app.Pipeline.Run(cmd.Context(), pipeline.RunRequest{
		ConfigPath: opts.configPath,
		Vars:       vars,
		Logger:     log,
	})
	if err != nil {
		if outcome != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "pipeline %q failed after %s (run %s)\n",
				outcome.Prepared.Config.Pipeline.Name, outcome.Duration, outcome.RunID)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q completed in %s (run %s)\n",
		outcome.Prepared.Config.Pipeline.Name, outcome.Duration, outcome.RunID)
	fmt.Fprintf(cmd.OutOrStdout(), "stages executed: %d\n", len(outcome.Outputs))
	return nil
}
