package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newPluginsCmd lists the stage functions in the built-in registry. Native
// and WASM plugins are loaded per document by the pipeline facade, so they
// are not listed here.
func newPluginsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered stage functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			functions := app.Registry.List()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FUNCTION")
			for _, fn := range functions {
				fmt.Fprintf(w, "%s\n", fn)
			}
			return w.Flush()
		},
	}

	return cmd
}
