package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geolife/importer/internal/app"
)

// Command creates the migrate command.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the importer schema",
		Long:  `Create the tables or collections of the configured sink. Existing schema is left in place, and a failed migration is rolled back.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeSink, err := ctx.Pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeSink() //nolint:errcheck // connection teardown

			if err := o.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready\n", ctx.Settings.Sink)
			return nil
		},
	}

	return cmd
}
