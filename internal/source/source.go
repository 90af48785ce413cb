// Package source reads the GeoLife dataset layout:
//
//	<root>/labeled_ids.txt
//	<root>/data/<user>/Trajectory/<stem>.plt
//	<root>/data/<user>/labels.txt
//
// It lists users and activity files, applies the activity line limit and parses
// raw rows into typed readings. It never writes.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
)

const (
	// HeaderLines is the number of header lines at the top of every .plt file.
	HeaderLines = 6
	// LabelHeaderLines is the number of header lines in labels.txt.
	LabelHeaderLines = 1
	// DefaultActivityLineLimit is the maximum number of data rows an activity may have.
	DefaultActivityLineLimit = 2500

	dataDir        = "data"
	trajectoryDir  = "Trajectory"
	labelsFile     = "labels.txt"
	labeledIDsFile = "labeled_ids.txt"

	readingLayout = "2006-01-02 15:04:05"
	labelLayout   = "2006/01/02 15:04:05"
)

// ErrRead marks a missing or unreadable dataset file. It is fatal when it
// concerns the dataset root or the labeled id list; otherwise only the affected
// activity or label file is skipped.
var ErrRead = errors.NewStd("source read failed")

// Reading is one parsed row of an activity file.
type Reading struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	DateDays  float64
	Time      time.Time
}

// Source is the read side of the pipeline.
type Source interface {
	// ListUserIDs returns every numeric user directory, ascending.
	ListUserIDs(ctx context.Context) ([]int, error)
	// ListLabeledUserIDs returns the ids listed in labeled_ids.txt.
	ListLabeledUserIDs(ctx context.Context) ([]int, error)
	// ListActivityFiles returns the user's activity files that pass the line limit.
	ListActivityFiles(ctx context.Context, userID int) ([]string, error)
	// ReadActivity parses an activity file, skipping header lines and malformed rows.
	ReadActivity(ctx context.Context, path string) ([]Reading, error)
	// ReadLabels parses the user's labels file, skipping the header and malformed rows.
	ReadLabels(ctx context.Context, userID int) ([]entities.Label, error)
}

func readError(err error, op, path string) error {
	category := errors.CategoryFileIO
	if errors.Is(err, errParse) {
		category = errors.CategoryFileParsing
	}
	return errors.New(fmt.Errorf("%w: %s %s: %w", ErrRead, op, path, err)).
		Component("source").
		Category(category).
		Context("operation", op).
		Context("path", path).
		Build()
}

var errParse = errors.NewStd("malformed row")
