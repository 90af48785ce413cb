// Package app wires settings into the runtime collaborators a command needs:
// the central logger, metrics, error telemetry, the resource monitor and the
// configured sink.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/geolife/importer/internal/batch"
	"github.com/geolife/importer/internal/buildinfo"
	"github.com/geolife/importer/internal/conf"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/monitor"
	"github.com/geolife/importer/internal/observability"
	"github.com/geolife/importer/internal/pipeline"
	"github.com/geolife/importer/internal/source"
)

const sentryFlushTimeout = 2 * time.Second

// Context holds the state shared by commands. It is created empty when the
// command tree is built and set up once settings are loaded.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Logger   logger.Logger
	Metrics  *observability.Metrics
	Monitor  *monitor.ResourceMonitor

	central   *logger.CentralLogger
	telemetry bool
}

// NewContext returns an unset Context carrying build metadata.
func NewContext(build *buildinfo.Context) *Context {
	return &Context{Build: build}
}

// Setup creates the logger, metrics registry, monitor and, when a DSN is
// configured, the Sentry reporter.
func (c *Context) Setup(settings *conf.Settings) error {
	c.Settings = settings

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	c.central = central
	c.Logger = central.Module("importer")

	if c.Metrics, err = observability.NewMetrics(); err != nil {
		return err
	}

	c.Monitor = monitor.New(monitor.Config{
		DiskPath:             diskPath(settings),
		MemoryWarningPercent: settings.Monitor.MemoryWarningPercent,
		DiskWarningPercent:   settings.Monitor.DiskWarningPercent,
		Logger:               c.Logger,
	})

	if settings.Telemetry.SentryDSN != "" {
		if err := initSentry(settings.Telemetry, c.Build); err != nil {
			c.Logger.Warn("error telemetry disabled", logger.Error(err))
		} else {
			errors.SetTelemetryReporter(errors.NewSentryReporter(true))
			c.telemetry = true
		}
	}

	c.Logger.Debug("runtime initialized",
		logger.String("version", c.Build.GetVersion()),
		logger.String("sink", settings.Sink),
		logger.Bool("telemetry", c.telemetry))
	return nil
}

// diskPath is the directory whose free space the monitor watches: the SQLite
// file's directory for a local import, otherwise nothing.
func diskPath(settings *conf.Settings) string {
	if settings.Sink == conf.SinkRelational && settings.Relational.Driver == conf.DriverSQLite {
		return dirOf(settings.Relational.Path)
	}
	return ""
}

// Pipeline opens the configured sink and returns an orchestrator over it.
// withSource opens the dataset as well; only seed needs it. The returned
// function closes the sink.
func (c *Context) Pipeline(ctx context.Context, withSource bool) (*pipeline.Orchestrator, func() error, error) {
	s := c.Settings

	var src source.Source
	if withSource {
		ds, err := source.OpenDir(s.Dataset.Path, source.Config{
			ActivityLineLimit: s.Import.ActivityLineLimit,
			Logger:            c.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		src = ds
	}

	sink, closeSink, err := OpenSink(ctx, s, c.Logger)
	if err != nil {
		return nil, nil, err
	}

	writer := batch.NewWriter(batch.Config{
		ChunkSize:       s.Import.ChunkSize,
		MaxRetries:      s.Import.MaxRetries,
		InitialInterval: s.Import.RetryInitialInterval,
		Logger:          c.Logger,
		Recorder:        c.Metrics.Import,
	})

	o, err := pipeline.New(pipeline.Config{
		Sink:    sink,
		Source:  src,
		Writer:  writer,
		Workers: s.Import.Workers,
		Logger:  c.Logger,
		Stages:  c.Metrics.Import,
		Monitor: c.Monitor,
	})
	if err != nil {
		_ = closeSink()
		return nil, nil, err
	}
	return o, closeSink, nil
}

// Close writes the metrics textfile if enabled, flushes telemetry and closes
// the logger. It is safe on a Context that was never set up.
func (c *Context) Close() error {
	if c.central == nil {
		return nil
	}

	var errs []error
	if c.Settings.Metrics.Enabled {
		if err := c.Metrics.WriteTextfile(c.Settings.Metrics.TextfilePath); err != nil {
			c.Logger.Warn("failed to write metrics", logger.Error(err))
			errs = append(errs, err)
		}
	}
	if c.telemetry {
		sentry.Flush(sentryFlushTimeout)
	}
	if err := c.central.Close(); err != nil {
		errs = append(errs, err)
	}
	c.central = nil
	return errors.Join(errs...)
}
