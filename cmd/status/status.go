package status

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geolife/importer/internal/app"
)

// Command creates the status command.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sink state and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeSink, err := ctx.Pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeSink() //nolint:errcheck // connection teardown

			st, err := o.Status(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "sink\t%s\n", st.Sink)
			fmt.Fprintf(w, "state\t%s\n", st.State)
			fmt.Fprintf(w, "users\t%d\n", st.Counts.Users)
			fmt.Fprintf(w, "activities\t%d\n", st.Counts.Activities)
			fmt.Fprintf(w, "track points\t%d\n", st.Counts.TrackPoints)
			return w.Flush()
		},
	}

	return cmd
}
