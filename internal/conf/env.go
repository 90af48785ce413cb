// env.go - environment variable bindings and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"sink", "GEOLIFE_SINK", validateEnvSink},
		{"dataset.path", "GEOLIFE_DATASET_PATH", nil},

		// Relational store
		{"relational.driver", "GEOLIFE_RELATIONAL_DRIVER", validateEnvDriver},
		{"relational.host", "GEOLIFE_RELATIONAL_HOST", nil},
		{"relational.port", "GEOLIFE_RELATIONAL_PORT", validateEnvPort},
		{"relational.database", "GEOLIFE_RELATIONAL_DATABASE", nil},
		{"relational.user", "GEOLIFE_RELATIONAL_USER", nil},
		{"relational.password", "GEOLIFE_RELATIONAL_PASSWORD", nil},
		{"relational.path", "GEOLIFE_RELATIONAL_PATH", nil},

		// Document store
		{"document.uri", "GEOLIFE_DOCUMENT_URI", validateEnvMongoURI},
		{"document.host", "GEOLIFE_DOCUMENT_HOST", nil},
		{"document.port", "GEOLIFE_DOCUMENT_PORT", validateEnvPort},
		{"document.database", "GEOLIFE_DOCUMENT_DATABASE", nil},
		{"document.user", "GEOLIFE_DOCUMENT_USER", nil},
		{"document.password", "GEOLIFE_DOCUMENT_PASSWORD", nil},

		// Import tunables
		{"import.chunk_size", "GEOLIFE_CHUNK_SIZE", validateEnvPositiveInt},
		{"import.activity_line_limit", "GEOLIFE_ACTIVITY_LINE_LIMIT", validateEnvPositiveInt},
		{"import.workers", "GEOLIFE_WORKERS", validateEnvPositiveInt},
		{"import.max_retries", "GEOLIFE_MAX_RETRIES", validateEnvInt},
		{"import.retry_initial_interval", "GEOLIFE_RETRY_INITIAL_INTERVAL", validateEnvDuration},

		{"telemetry.sentry_dsn", "GEOLIFE_SENTRY_DSN", nil},
		{"metrics.enabled", "GEOLIFE_METRICS_ENABLED", validateEnvBool},
		{"logging.console.level", "GEOLIFE_LOG_LEVEL", validateEnvLogLevel},
		{"debug", "GEOLIFE_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvInt(value string) error {
	if _, err := strconv.Atoi(value); err != nil {
		return fmt.Errorf("must be an integer")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateEnvPort(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("must be a duration such as 500ms or 2s")
	}
	return nil
}

func validateEnvDriver(value string) error {
	switch value {
	case DriverMySQL, DriverSQLite:
		return nil
	}
	return fmt.Errorf("must be %s or %s", DriverMySQL, DriverSQLite)
}

func validateEnvSink(value string) error {
	switch value {
	case SinkRelational, SinkDocument:
		return nil
	}
	return fmt.Errorf("must be %s or %s", SinkRelational, SinkDocument)
}

func validateEnvMongoURI(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return fmt.Errorf("scheme must be mongodb or mongodb+srv")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("must be one of trace, debug, info, warn, error")
}
