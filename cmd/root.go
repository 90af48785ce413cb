package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geolife/importer/cmd/config"
	"github.com/geolife/importer/cmd/migrate"
	"github.com/geolife/importer/cmd/seed"
	"github.com/geolife/importer/cmd/status"
	"github.com/geolife/importer/cmd/version"
	"github.com/geolife/importer/cmd/wipe"
	"github.com/geolife/importer/internal/app"
	"github.com/geolife/importer/internal/conf"
)

// RootCommand creates and returns the root command. Settings are loaded from
// v in the pre-run hook so flags, environment and config file all apply.
func RootCommand(appCtx *app.Context, v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "geolife",
		Short:         "GeoLife trajectory importer",
		Long:          "Import the GeoLife GPS trajectory dataset into a relational or document database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		panic(err) // flag names are static
	}

	versionCmd := version.Command(appCtx)
	configCmd := config.Command(appCtx)

	rootCmd.AddCommand(
		wipe.Command(appCtx),
		migrate.Command(appCtx),
		seed.Command(appCtx),
		status.Command(appCtx),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}

		settings, err := conf.Load(v, configFile)
		if err != nil {
			return err
		}

		// Config commands only need settings, not connections or logging.
		if cmd.Parent() == configCmd {
			appCtx.Settings = settings
			return nil
		}
		return appCtx.Setup(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface and
// binds them to their configuration keys.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(configFile, "config", "", "Path to config.yaml (default: search ., ~/.config/geolife, /etc/geolife)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("sink", conf.SinkRelational, "Target data model: relational or document")
	flags.String("dataset", "", "Path to the GeoLife dataset directory")
	flags.String("driver", conf.DriverMySQL, "Relational driver: mysql or sqlite")
	flags.String("sqlite-path", "", "SQLite database file")
	flags.Int("chunk-size", conf.DefaultChunkSize, "Records per write chunk")
	flags.Int("workers", 4, "Concurrent user readers during extraction")

	bindings := map[string]string{
		"debug":             "debug",
		"sink":              "sink",
		"dataset.path":      "dataset",
		"relational.driver": "driver",
		"relational.path":   "sqlite-path",
		"import.chunk_size": "chunk-size",
		"import.workers":    "workers",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
