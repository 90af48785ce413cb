package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geolife/importer/cmd"
	"github.com/geolife/importer/internal/app"
	"github.com/geolife/importer/internal/buildinfo"
	"github.com/geolife/importer/internal/conf"
)

// buildDate and version are set at build time with -ldflags.
var (
	buildDate string
	version   string
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := conf.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing configuration: %v\n", err)
		return 1
	}

	appCtx := app.NewContext(&buildinfo.Context{Version: version, BuildDate: buildDate})
	rootCmd := cmd.RootCommand(appCtx, v)

	runErr := rootCmd.ExecuteContext(ctx)
	if err := appCtx.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}
	return 0
}
