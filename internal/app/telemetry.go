package app

import (
	"fmt"

	"github.com/getsentry/sentry-go"

	"github.com/geolife/importer/internal/buildinfo"
	"github.com/geolife/importer/internal/conf"
)

// initSentry initializes the Sentry SDK with privacy-preserving options.
func initSentry(settings conf.TelemetrySettings, build *buildinfo.Context) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          build.Release(),
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

// scrubEvent drops host and user identifying data from an event.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	return event
}
