package relational_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolife/importer/internal/batch"
	"github.com/geolife/importer/internal/datastore/relational"
	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
	"github.com/geolife/importer/internal/source"
	"github.com/geolife/importer/internal/testutil"
)

func newPipeline(t *testing.T, store *relational.Store) *pipeline.Orchestrator {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	o, err := pipeline.New(pipeline.Config{
		Sink:    store,
		Source:  source.NewDataset(testutil.StandardFixture(), source.Config{Logger: log}),
		Writer:  batch.NewWriter(batch.Config{ChunkSize: 16, Logger: log}),
		Workers: 2,
		Logger:  log,
	})
	require.NoError(t, err)
	return o
}

func openSQLite(t *testing.T) *relational.Store {
	t.Helper()
	store, err := relational.Open(relational.Config{
		Dialect:        relational.DialectSQLite,
		DSN:            filepath.Join(t.TempDir(), "geolife.db"),
		StatementBatch: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// assertRoundTrip runs wipe, migrate and seed twice over the standard fixture.
func assertRoundTrip(t *testing.T, store *relational.Store) {
	t.Helper()
	ctx := context.Background()
	o := newPipeline(t, store)
	want := entities.Counts{Users: 2, Activities: 3, TrackPoints: 50}

	require.NoError(t, o.Wipe(ctx))
	require.NoError(t, o.Migrate(ctx))
	report, err := o.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, report.Counts)

	_, err = o.Seed(ctx)
	require.NoError(t, err)
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, counts)

	var modes []struct {
		ID                 string
		TransportationMode string
	}
	require.NoError(t, store.DB().Raw("SELECT id, transportation_mode FROM activities ORDER BY id").Scan(&modes).Error)
	require.Len(t, modes, 3)
	assert.Equal(t, "walk", modes[0].TransportationMode)
	assert.Empty(t, modes[1].TransportationMode)
	assert.Empty(t, modes[2].TransportationMode)

	var labeled int64
	require.NoError(t, store.DB().Raw("SELECT COUNT(*) FROM users WHERE has_labels").Scan(&labeled).Error)
	assert.Equal(t, int64(1), labeled)
}

func TestRoundTrip_SQLite(t *testing.T) {
	t.Parallel()
	assertRoundTrip(t, openSQLite(t))
}

func TestSeedAfterWipe_FailsWithoutWriting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	o := newPipeline(t, store)

	require.NoError(t, o.Migrate(ctx))
	require.NoError(t, o.Wipe(ctx))

	_, err := o.Seed(ctx)
	require.ErrorIs(t, err, pipeline.ErrPrecondition)

	state, err := store.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Uninitialized, state, "seed must not create tables")
}

func TestFreshOrchestratorProbesSchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	require.NoError(t, newPipeline(t, store).Migrate(ctx))

	o := newPipeline(t, store)
	state, err := o.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.SchemaReady, state)

	_, err = o.Seed(ctx)
	require.NoError(t, err)
	st, err := o.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Seeded, st.State)
	assert.Equal(t, int64(50), st.Counts.TrackPoints)
}

func TestSeed_SkipsNonFiniteCoordinates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openSQLite(t)
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

	fsys := testutil.BuildFS(testutil.User{
		Dir: "000",
		Activities: []testutil.Activity{{
			Stem:   "20081023025304",
			Start:  time.Date(2008, 10, 23, 2, 53, 4, 0, time.UTC),
			Points: 3,
			ExtraLines: []string{
				"NaN,116.3,0,492,39744.2,2008-10-23,03:00:00",
				"39.9,Inf,0,492,39744.2,2008-10-23,03:00:05",
			},
		}},
	})
	o, err := pipeline.New(pipeline.Config{
		Sink:   store,
		Source: source.NewDataset(fsys, source.Config{Logger: log}),
		Logger: log,
	})
	require.NoError(t, err)

	require.NoError(t, o.Migrate(ctx))
	report, err := o.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.Counts{Users: 1, Activities: 1, TrackPoints: 3}, report.Counts)
}
