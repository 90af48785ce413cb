package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger creates a JSON logger writing to w. Passing io.Discard gives a
// silent logger for tests.
func NewSlogLogger(w io.Writer, level LogLevel, timezone *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if timezone == nil {
		timezone = time.UTC
	}

	lvl := parseSlogLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.TimeValue(a.Value.Time().In(timezone))
			}
			return a
		},
	}
	return &moduleLogger{
		logger: slog.New(slog.NewJSONHandler(w, opts)),
		level:  lvl,
	}
}

// NewConsoleLogger creates a text logger for use before configuration is loaded.
func NewConsoleLogger(module string, level LogLevel) Logger {
	lvl := parseSlogLevel(level)
	return &moduleLogger{
		module: module,
		logger: slog.New(newTextHandler(os.Stdout, lvl, time.Local)),
		level:  lvl,
	}
}
