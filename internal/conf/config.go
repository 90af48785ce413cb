// Package conf loads importer settings from config.yaml, GEOLIFE_* environment
// variables and command line flags.
package conf

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
)

// Relational driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Sink kinds selectable with --sink.
const (
	SinkRelational = "relational"
	SinkDocument   = "document"
)

// Settings contains all importer configuration.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// Sink selects the data model the pipeline writes: relational or document.
	Sink string `mapstructure:"sink" yaml:"sink"`

	Dataset    DatasetSettings      `mapstructure:"dataset" yaml:"dataset"`
	Relational RelationalSettings   `mapstructure:"relational" yaml:"relational"`
	Document   DocumentSettings     `mapstructure:"document" yaml:"document"`
	Import     ImportSettings       `mapstructure:"import" yaml:"import"`
	Logging    logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Telemetry  TelemetrySettings    `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics    MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Monitor    MonitorSettings      `mapstructure:"monitor" yaml:"monitor"`
}

// DatasetSettings locates the GeoLife directory tree.
type DatasetSettings struct {
	Path string `mapstructure:"path" yaml:"path"` // directory containing Data/ and labeled_ids.txt
}

// RelationalSettings configures the SQL sink.
type RelationalSettings struct {
	Driver   string `mapstructure:"driver" yaml:"driver"` // mysql or sqlite
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Path     string `mapstructure:"path" yaml:"path"` // sqlite database file
}

// DocumentSettings configures the MongoDB sink. URI wins over the discrete
// connection fields when both are set.
type DocumentSettings struct {
	// URI is a full connection string. A database in its path only selects
	// the authentication database; Database names the one the import uses.
	URI  string `mapstructure:"uri" yaml:"uri"`
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// Database is always used for the import, even when URI names another.
	Database string        `mapstructure:"database" yaml:"database"`
	User     string        `mapstructure:"user" yaml:"user"`
	Password string        `mapstructure:"password" yaml:"password"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ImportSettings holds the pipeline tunables.
type ImportSettings struct {
	ChunkSize            int           `mapstructure:"chunk_size" yaml:"chunk_size"`
	ActivityLineLimit    int           `mapstructure:"activity_line_limit" yaml:"activity_line_limit"`
	Workers              int           `mapstructure:"workers" yaml:"workers"`
	StatementBatch       int           `mapstructure:"statement_batch" yaml:"statement_batch"` // rows per INSERT statement inside a chunk
	MaxRetries           int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" yaml:"retry_initial_interval"`
}

// TelemetrySettings enables Sentry error reporting when DSN is set.
type TelemetrySettings struct {
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// MetricsSettings controls the Prometheus textfile written after each command.
type MetricsSettings struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// MonitorSettings holds resource warning thresholds in percent.
type MonitorSettings struct {
	MemoryWarningPercent float64 `mapstructure:"memory_warning_percent" yaml:"memory_warning_percent"`
	DiskWarningPercent   float64 `mapstructure:"disk_warning_percent" yaml:"disk_warning_percent"`
}

// MySQLDSN renders the relational connection settings as a go-sql-driver DSN.
// parseTime is always enabled so DATETIME columns scan into time.Time.
func (r *RelationalSettings) MySQLDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = r.User
	cfg.Passwd = r.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	cfg.DBName = r.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// MongoURI returns the configured URI or one assembled from host, port and
// credentials. Credentials are percent-encoded.
func (d *DocumentSettings) MongoURI() string {
	if d.URI != "" {
		return d.URI
	}
	u := url.URL{Scheme: "mongodb", Host: net.JoinHostPort(d.Host, strconv.Itoa(d.Port))}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind flags to it before calling Load.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-env").
			Build()
	}
	return v, nil
}

// Load reads the config file (configFile, or the first config.yaml found on
// the search path) into Settings and validates the result. A missing config
// file is not an error; defaults, environment and flags still apply.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Context("config_file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryValidation).
			Context("config_file", v.ConfigFileUsed()).
			Build()
	}

	return settings, nil
}

// Defaults returns settings populated from defaults only.
func Defaults() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	// Defaults are static and always decode.
	_ = v.Unmarshal(settings)
	return settings
}

// SaveYAMLConfig writes settings to configPath. The file is written to a
// temporary sibling and renamed into place.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // already renamed on success

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}
	return nil
}
