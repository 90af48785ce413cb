// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default tunables. Chunk size and line limit match the values the dataset
// was originally imported with.
const (
	DefaultChunkSize         = 120_000
	DefaultActivityLineLimit = 2500
	DefaultStatementBatch    = 1000
	DefaultMaxRetries        = 3
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("sink", SinkRelational)

	v.SetDefault("dataset.path", "dataset")

	v.SetDefault("relational.driver", DriverMySQL)
	v.SetDefault("relational.host", "localhost")
	v.SetDefault("relational.port", 3306)
	v.SetDefault("relational.database", "geolife")
	v.SetDefault("relational.user", "geolife")
	v.SetDefault("relational.password", "")
	v.SetDefault("relational.path", "geolife.db")

	v.SetDefault("document.uri", "")
	v.SetDefault("document.host", "localhost")
	v.SetDefault("document.port", 27017)
	v.SetDefault("document.database", "geolife")
	v.SetDefault("document.user", "")
	v.SetDefault("document.password", "")
	v.SetDefault("document.timeout", 10*time.Second)

	v.SetDefault("import.chunk_size", DefaultChunkSize)
	v.SetDefault("import.activity_line_limit", DefaultActivityLineLimit)
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.statement_batch", DefaultStatementBatch)
	v.SetDefault("import.max_retries", DefaultMaxRetries)
	v.SetDefault("import.retry_initial_interval", 500*time.Millisecond)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "UTC")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/import.log")
	v.SetDefault("logging.file_output.level", "debug")

	v.SetDefault("telemetry.sentry_dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile_path", "importer.prom")

	v.SetDefault("monitor.memory_warning_percent", 90.0)
	v.SetDefault("monitor.disk_warning_percent", 95.0)
}
