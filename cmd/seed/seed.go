package seed

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/geolife/importer/internal/app"
)

// Command creates the seed command, which imports the dataset into a migrated
// sink.
func Command(ctx *app.Context) *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import the GeoLife dataset",
		Long: `Read every user, activity and label file of the dataset and write them to the configured sink.

The relational sink upserts, so seeding again is safe. The document sink refuses
to import into collections that already hold data; wipe and migrate first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeSink, err := ctx.Pipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeSink() //nolint:errcheck // connection teardown

			if migrateFirst {
				if err := o.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			report, err := o.Seed(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "trace id\t%s\n", report.TraceID)
			fmt.Fprintf(w, "users\t%d\n", report.Counts.Users)
			fmt.Fprintf(w, "activities\t%d\n", report.Counts.Activities)
			fmt.Fprintf(w, "track points\t%d\n", report.Counts.TrackPoints)
			fmt.Fprintf(w, "labeled activities\t%d\n", report.MatchedActivities)
			fmt.Fprintf(w, "skipped files\t%d\n", report.SkippedFiles)
			fmt.Fprintf(w, "elapsed\t%s\n", report.Elapsed.Round(time.Millisecond))
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Create the schema before seeding")

	return cmd
}
