package pipeline

import (
	"fmt"

	"github.com/geolife/importer/internal/errors"
)

// State is the persisted import state of a sink.
type State int

const (
	// Uninitialized means no schema exists.
	Uninitialized State = iota
	// SchemaReady means the schema exists and seeding may start.
	SchemaReady
	// Seeded means a full seed completed.
	Seeded
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SchemaReady:
		return "schema-ready"
	case Seeded:
		return "seeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sentinel errors. Returned errors wrap them and carry context such as the
// sink name and current state; match with errors.Is.
var (
	// ErrPrecondition is returned when an operation is called in the wrong state.
	// No work has been attempted.
	ErrPrecondition = errors.NewStd("precondition failed")
	// ErrSchema is returned when schema creation fails. The schema change was
	// rolled back.
	ErrSchema = errors.NewStd("schema migration failed")
	// ErrAlreadyImported is returned by an insert-only sink whose collections
	// already hold data. Nothing was written; wipe before importing again.
	ErrAlreadyImported = errors.NewStd("dataset already imported")
)

func preconditionError(op string, sink string, state State) error {
	return errors.New(fmt.Errorf("%w: %s requires schema, %s sink is %s", ErrPrecondition, op, sink, state)).
		Component("pipeline").
		Category(errors.CategoryState).
		Context("operation", op).
		Context("sink", sink).
		Context("state", state.String()).
		Build()
}

func alreadyImportedError(sink string) error {
	return errors.New(fmt.Errorf("%w: %s sink holds data, wipe it first", ErrAlreadyImported, sink)).
		Component("pipeline").
		Category(errors.CategoryConflict).
		Context("sink", sink).
		Build()
}

// SchemaError wraps a failed migration with ErrSchema. Sinks use it so the
// orchestrator and callers see one error kind regardless of dialect.
func SchemaError(sink string, err error) error {
	if errors.Is(err, ErrSchema) {
		return err
	}
	return errors.New(fmt.Errorf("%w: %w", ErrSchema, err)).
		Component("pipeline").
		Category(errors.CategorySchema).
		Context("sink", sink).
		Build()
}
