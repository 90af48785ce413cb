// Package pipeline sequences the GeoLife import: schema creation, wipe and the
// seed stages users, activities, track points, mode backfill and finalization.
// The orchestrator owns the sink for the duration of a run and tracks its
// state; stages never close or reconfigure it.
package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geolife/importer/internal/backref"
	"github.com/geolife/importer/internal/batch"
	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/monitor"
	"github.com/geolife/importer/internal/source"
)

// Stage names used in logs and metrics.
const (
	StageExtract        = "extract"
	StageBackreferences = "backreferences"
	StageUsers          = "users"
	StageActivities     = "activities"
	StageTrackPoints    = "track_points"
	StageModeBackfill   = "mode_backfill"
	StageFinalize       = "finalize"
	StageWipe           = "wipe"
	StageMigrate        = "migrate"

	targetModes = "activity_modes"
)

// StageRecorder receives stage outcomes. The metrics package implements it.
type StageRecorder interface {
	StageFinished(stage string, elapsed time.Duration, err error)
	SetExtracted(kind string, n int)
}

// ResourceMonitor samples resource usage after a stage.
type ResourceMonitor interface {
	LogStage(ctx context.Context, stage string) monitor.Sample
}

// Config configures an Orchestrator. Source is only needed for Seed.
type Config struct {
	Sink    Sink
	Source  source.Source
	Writer  *batch.Writer
	Workers int
	Logger  logger.Logger
	Stages  StageRecorder
	Monitor ResourceMonitor
}

// Report summarizes a successful seed.
type Report struct {
	TraceID           string
	Users             int
	Activities        int
	TrackPoints       int
	MatchedActivities int
	SkippedFiles      int
	Counts            entities.Counts
	Elapsed           time.Duration
}

// Status is the live state of a sink.
type Status struct {
	Sink   string
	State  State
	Counts entities.Counts
}

// Orchestrator runs pipeline operations against one sink. Operations are
// serialized.
type Orchestrator struct {
	sink    Sink
	src     source.Source
	writer  *batch.Writer
	workers int
	log     logger.Logger
	stages  StageRecorder
	monitor ResourceMonitor

	mu     sync.Mutex
	state  State
	probed bool
}

// New creates an Orchestrator. The sink state is probed on first use.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Sink == nil {
		return nil, errors.Newf("pipeline requires a sink").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	}
	writer := cfg.Writer
	if writer == nil {
		writer = batch.NewWriter(batch.Config{Logger: log})
	}
	stages := cfg.Stages
	if stages == nil {
		stages = noopStages{}
	}
	return &Orchestrator{
		sink:    cfg.Sink,
		src:     cfg.Source,
		writer:  writer,
		workers: max(cfg.Workers, 1),
		log:     log.Module("pipeline").With(logger.String("sink", cfg.Sink.Name())),
		stages:  stages,
		monitor: cfg.Monitor,
	}, nil
}

// State returns the current state, probing the sink if it is not yet known.
func (o *Orchestrator) State(ctx context.Context) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentState(ctx)
}

func (o *Orchestrator) currentState(ctx context.Context) (State, error) {
	if o.probed {
		return o.state, nil
	}
	state, err := o.sink.Probe(ctx)
	if err != nil {
		return Uninitialized, err
	}
	o.state, o.probed = state, true
	return state, nil
}

// Status probes the sink and returns its state and record counts.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.currentState(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Sink: o.sink.Name(), State: state}
	if state == Uninitialized {
		return st, nil
	}
	if st.Counts, err = o.sink.Counts(ctx); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Wipe drops all data and schema. It may be called in any state.
func (o *Orchestrator) Wipe(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = withTrace(ctx)
	err := o.runStage(ctx, StageWipe, o.sink.Wipe)
	if err != nil {
		// Part of the data may be gone; learn the real state on next use.
		o.probed = false
		return err
	}
	o.state, o.probed = Uninitialized, true
	return nil
}

// Migrate creates the schema. On failure the schema change is rolled back and
// the state is unchanged.
func (o *Orchestrator) Migrate(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = withTrace(ctx)
	state, err := o.currentState(ctx)
	if err != nil {
		return err
	}

	err = o.runStage(ctx, StageMigrate, func(ctx context.Context) error {
		if err := o.sink.Migrate(ctx); err != nil {
			return SchemaError(o.sink.Name(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if state == Uninitialized {
		o.state = SchemaReady
	}
	return nil
}

// Seed imports the dataset. It requires a schema; an insert-only sink must
// also be empty. A failure leaves the state as it was, with any chunks written
// before the failure still in place.
func (o *Orchestrator) Seed(ctx context.Context) (*Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.src == nil {
		return nil, errors.Newf("seed requires a dataset source").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx = withTrace(ctx)
	log := o.log.WithContext(ctx)
	started := time.Now()

	state, err := o.currentState(ctx)
	if err != nil {
		return nil, err
	}
	if state == Uninitialized {
		return nil, preconditionError("seed", o.sink.Name(), state)
	}

	caps := o.sink.Capabilities()
	if !caps.Upsert {
		imported, err := o.sink.Imported(ctx)
		if err != nil {
			return nil, err
		}
		if imported {
			log.Warn("sink already holds an import, wipe it before seeding again")
			return nil, alreadyImportedError(o.sink.Name())
		}
	}

	var ex *Extraction
	err = o.runStage(ctx, StageExtract, func(ctx context.Context) error {
		var err error
		ex, err = Extract(ctx, o.src, o.workers, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.stages.SetExtracted(entities.CollectionUsers, len(ex.Users))
	o.stages.SetExtracted(entities.CollectionActivities, len(ex.Activities))
	o.stages.SetExtracted(entities.CollectionTrackPoints, len(ex.TrackPoints))
	log.Info("dataset extracted",
		logger.Int("users", len(ex.Users)),
		logger.Int("activities", len(ex.Activities)),
		logger.Int("track_points", len(ex.TrackPoints)),
		logger.Int("matched_activities", ex.Matched),
		logger.Int("skipped_files", ex.Skipped))

	if caps.Backreferences {
		err = o.runStage(ctx, StageBackreferences, func(context.Context) error {
			return backref.Attach(ex.Users, ex.Activities, ex.TrackPoints)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := o.writeStage(ctx, StageUsers, func(ctx context.Context) (batch.Result, error) {
		return batch.Write(ctx, o.writer, entities.CollectionUsers, ex.Users, o.sink.WriteUsers)
	}); err != nil {
		return nil, err
	}
	if err := o.writeStage(ctx, StageActivities, func(ctx context.Context) (batch.Result, error) {
		return batch.Write(ctx, o.writer, entities.CollectionActivities, ex.Activities, o.sink.WriteActivities)
	}); err != nil {
		return nil, err
	}
	if err := o.writeStage(ctx, StageTrackPoints, func(ctx context.Context) (batch.Result, error) {
		return batch.Write(ctx, o.writer, entities.CollectionTrackPoints, ex.TrackPoints, o.sink.WriteTrackPoints)
	}); err != nil {
		return nil, err
	}

	if caps.ModeBackfill {
		if err := o.writeStage(ctx, StageModeBackfill, func(ctx context.Context) (batch.Result, error) {
			return batch.Write(ctx, o.writer, targetModes, ex.LabeledActivities(), o.sink.BackfillModes)
		}); err != nil {
			return nil, err
		}
	}

	if err := o.runStage(ctx, StageFinalize, o.sink.Finalize); err != nil {
		return nil, err
	}

	counts, err := o.sink.Counts(ctx)
	if err != nil {
		return nil, err
	}
	o.state, o.probed = Seeded, true

	report := &Report{
		TraceID:           logger.TraceIDFromContext(ctx),
		Users:             len(ex.Users),
		Activities:        len(ex.Activities),
		TrackPoints:       len(ex.TrackPoints),
		MatchedActivities: ex.Matched,
		SkippedFiles:      ex.Skipped,
		Counts:            counts,
		Elapsed:           time.Since(started),
	}
	log.Info("seed completed",
		logger.Int64("users", counts.Users),
		logger.Int64("activities", counts.Activities),
		logger.Int64("track_points", counts.TrackPoints),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}

// writeStage runs a batch write as a stage and logs the stored total of the
// stage's record kind afterwards.
func (o *Orchestrator) writeStage(ctx context.Context, stage string, write func(context.Context) (batch.Result, error)) error {
	return o.runStage(ctx, stage, func(ctx context.Context) error {
		res, err := write(ctx)
		if err != nil {
			return err
		}
		log := o.log.WithContext(ctx)
		fields := []logger.Field{
			logger.String("stage", stage),
			logger.Int("records", res.Records),
			logger.Int("chunks", res.Chunks),
			logger.Int("retries", res.Retries),
		}
		if stored, ok := o.storedCount(ctx, stage); ok {
			fields = append(fields, logger.Int64("stored", stored))
		}
		log.Info("records written", fields...)
		return nil
	})
}

func (o *Orchestrator) storedCount(ctx context.Context, stage string) (int64, bool) {
	counts, err := o.sink.Counts(ctx)
	if err != nil {
		o.log.WithContext(ctx).Debug("count query failed", logger.Error(err))
		return 0, false
	}
	switch stage {
	case StageUsers:
		return counts.Users, true
	case StageActivities, StageModeBackfill:
		return counts.Activities, true
	case StageTrackPoints:
		return counts.TrackPoints, true
	}
	return 0, false
}

func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	log := o.log.WithContext(ctx).With(logger.String("stage", stage))
	log.Info("stage started")
	start := time.Now()

	err := fn(ctx)
	elapsed := time.Since(start)
	o.stages.StageFinished(stage, elapsed, err)
	if err != nil {
		log.Error("stage failed", logger.Duration("elapsed", elapsed), logger.Error(err))
		return err
	}

	log.Info("stage finished", logger.Duration("elapsed", elapsed))
	if o.monitor != nil {
		o.monitor.LogStage(ctx, stage)
	}
	return nil
}

// withTrace attaches a fresh trace id unless ctx already carries one.
func withTrace(ctx context.Context) context.Context {
	if logger.TraceIDFromContext(ctx) != "" {
		return ctx
	}
	return logger.WithTraceID(ctx, uuid.NewString())
}

type noopStages struct{}

func (noopStages) StageFinished(string, time.Duration, error) {}
func (noopStages) SetExtracted(string, int)                   {}
