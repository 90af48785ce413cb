package pipeline

import (
	"context"

	"github.com/geolife/importer/internal/entities"
)

// Capabilities describe how a sink stores a run.
type Capabilities struct {
	// Upsert sinks accept a repeated seed. Insert-only sinks must be empty and
	// refuse with ErrAlreadyImported otherwise.
	Upsert bool
	// Backreferences asks for embedded child id lists on users and activities
	// and the activity mode copied onto track points.
	Backreferences bool
	// ModeBackfill asks for a separate mode update after activities are
	// written. Sinks without it store the mode with the activity.
	ModeBackfill bool
}

// Sink is the write side of the pipeline. Write methods receive one chunk and
// must apply it completely or not at all; the batch writer retries them, so
// they must also tolerate a chunk that was applied before a reported failure.
type Sink interface {
	Name() string
	Capabilities() Capabilities

	// Wipe removes all users, activities and track points together with the
	// schema. It is idempotent.
	Wipe(ctx context.Context) error
	// Migrate creates the schema atomically. Re-applying it is a no-op.
	Migrate(ctx context.Context) error
	// Probe reports the persisted state.
	Probe(ctx context.Context) (State, error)
	// Imported reports whether any records exist.
	Imported(ctx context.Context) (bool, error)

	WriteUsers(ctx context.Context, chunk []entities.User) error
	WriteActivities(ctx context.Context, chunk []entities.Activity) error
	WriteTrackPoints(ctx context.Context, chunk []entities.TrackPoint) error
	// BackfillModes sets the stored mode of each activity in chunk.
	BackfillModes(ctx context.Context, chunk []entities.Activity) error
	// Finalize runs after all records are written, for example to build indexes.
	Finalize(ctx context.Context) error

	Counts(ctx context.Context) (entities.Counts, error)
}
