// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if settings.Sink != SinkRelational && settings.Sink != SinkDocument {
		ve.Errors = append(ve.Errors, fmt.Sprintf("sink must be %s or %s, got %q", SinkRelational, SinkDocument, settings.Sink))
	}

	if err := validateRelationalSettings(&settings.Relational); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDocumentSettings(&settings.Document); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	ve.Errors = append(ve.Errors, validateImportSettings(&settings.Import)...)

	if settings.Metrics.Enabled && settings.Metrics.TextfilePath == "" {
		ve.Errors = append(ve.Errors, "metrics.textfile_path is required when metrics are enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateRelationalSettings(settings *RelationalSettings) error {
	switch settings.Driver {
	case DriverMySQL:
		if settings.Host == "" {
			return fmt.Errorf("relational.host is required for the mysql driver")
		}
		if settings.Port < 1 || settings.Port > 65535 {
			return fmt.Errorf("relational.port must be between 1 and 65535, got %d", settings.Port)
		}
		if settings.Database == "" {
			return fmt.Errorf("relational.database is required for the mysql driver")
		}
	case DriverSQLite:
		if settings.Path == "" {
			return fmt.Errorf("relational.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("relational.driver must be %s or %s, got %q", DriverMySQL, DriverSQLite, settings.Driver)
	}
	return nil
}

func validateDocumentSettings(settings *DocumentSettings) error {
	if settings.Database == "" {
		return fmt.Errorf("document.database is required")
	}
	if settings.URI == "" && (settings.Port < 1 || settings.Port > 65535) {
		return fmt.Errorf("document.port must be between 1 and 65535, got %d", settings.Port)
	}
	return nil
}

func validateImportSettings(settings *ImportSettings) []string {
	var errs []string
	if settings.ChunkSize <= 0 {
		errs = append(errs, fmt.Sprintf("import.chunk_size must be positive, got %d", settings.ChunkSize))
	}
	if settings.ActivityLineLimit <= 0 {
		errs = append(errs, fmt.Sprintf("import.activity_line_limit must be positive, got %d", settings.ActivityLineLimit))
	}
	if settings.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("import.workers must be positive, got %d", settings.Workers))
	}
	if settings.StatementBatch <= 0 {
		errs = append(errs, fmt.Sprintf("import.statement_batch must be positive, got %d", settings.StatementBatch))
	}
	if settings.RetryInitialInterval < 0 {
		errs = append(errs, "import.retry_initial_interval must not be negative")
	}
	return errs
}
