package wipe

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geolife/importer/internal/app"
)

// Command creates the wipe command, which drops every importer table or
// collection of the configured sink.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Drop all imported data and schema",
		Long:  `Drop the users, activities and track_points tables or collections of the configured sink. Safe to run on an empty database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeSink, err := ctx.Pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeSink() //nolint:errcheck // connection teardown

			if err := o.Wipe(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sink wiped\n", ctx.Settings.Sink)
			return nil
		},
	}

	return cmd
}
