//go:build integration && mongo

package document_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/geolife/importer/internal/batch"
	"github.com/geolife/importer/internal/datastore/document"
	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
	"github.com/geolife/importer/internal/source"
	"github.com/geolife/importer/internal/testutil"
)

// setupMongoContainer starts MongoDB and returns a connected store.
func setupMongoContainer(t *testing.T) *document.Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.LongTestTimeout)
	defer cancel()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := document.Open(ctx, document.Config{URI: uri, Database: "geolife", Timeout: 30 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func newPipeline(t *testing.T, store *document.Store) *pipeline.Orchestrator {
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

func TestRoundTrip_MongoDB(t *testing.T) {
	ctx := context.Background()
	store := setupMongoContainer(t)
	o := newPipeline(t, store)

	require.NoError(t, o.Wipe(ctx))
	state, err := store.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Uninitialized, state)

	require.NoError(t, o.Migrate(ctx))
	state, err = store.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.SchemaReady, state)

	report, err := o.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.Counts{Users: 2, Activities: 3, TrackPoints: 50}, report.Counts)

	state, err = store.Probe(ctx)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Seeded, state)

	t.Run("backreferences", func(t *testing.T) {
		var user struct {
			Activities []string `bson:"activities"`
			HasLabels  bool     `bson:"has_labels"`
		}
		require.NoError(t, store.Database().Collection("users").FindOne(ctx, bson.D{{Key: "_id", Value: 0}}).Decode(&user))
		assert.True(t, user.HasLabels)
		assert.Equal(t, []string{"000-20081023025304", "000-20081024090000"}, user.Activities)

		var activity struct {
			Mode        string   `bson:"transportation_mode"`
			TrackPoints []string `bson:"track_points"`
		}
		require.NoError(t, store.Database().Collection("activities").
			FindOne(ctx, bson.D{{Key: "_id", Value: "000-20081023025304"}}).Decode(&activity))
		assert.Equal(t, "walk", activity.Mode)
		assert.Len(t, activity.TrackPoints, 20)

		walking, err := store.Database().Collection("track_points").
			CountDocuments(ctx, bson.D{{Key: "transportation_mode", Value: "walk"}})
		require.NoError(t, err)
		assert.Equal(t, int64(20), walking)
	})

	t.Run("geo query uses location index", func(t *testing.T) {
		near := bson.D{{Key: "location", Value: bson.D{{Key: "$nearSphere", Value: bson.D{
			{Key: "$geometry", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{116.318417, 39.984702}},
			}},
			{Key: "$maxDistance", Value: 1},
		}}}}}
		cur, err := store.Database().Collection("track_points").Find(ctx, near)
		require.NoError(t, err)
		var found []bson.M
		require.NoError(t, cur.All(ctx, &found))
		// Every fixture activity starts at the same coordinates.
		assert.Len(t, found, 3)
	})

	t.Run("second seed is rejected", func(t *testing.T) {
		_, err := o.Seed(ctx)
		require.ErrorIs(t, err, pipeline.ErrAlreadyImported)
		counts, err := store.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(50), counts.TrackPoints)
	})

	t.Run("wipe then seed again", func(t *testing.T) {
		require.NoError(t, o.Wipe(ctx))
		require.NoError(t, o.Migrate(ctx))
		_, err := o.Seed(ctx)
		require.NoError(t, err)
	})
}

func TestRetriedChunkIsApplied(t *testing.T) {
	ctx := context.Background()
	store := setupMongoContainer(t)
	require.NoError(t, store.Migrate(ctx))

	// The first attempt stores part of the chunk and then loses the
	// connection; the retry meets the stored documents as duplicates.
	apply := func(ctx context.Context, chunk []entities.User) error {
		if batch.Attempt(ctx) == 1 {
			require.NoError(t, store.WriteUsers(ctx, chunk[:1]))
			return fmt.Errorf("connection reset by peer")
		}
		return store.WriteUsers(ctx, chunk)
	}
	w := batch.NewWriter(batch.Config{InitialInterval: time.Millisecond})
	res, err := batch.Write(ctx, w, entities.CollectionUsers,
		[]entities.User{{ID: 0, HasLabels: true}, {ID: 1}}, apply)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retries)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Users)
}

func TestFirstAttemptDuplicatesFailTheChunk(t *testing.T) {
	ctx := context.Background()
	store := setupMongoContainer(t)
	require.NoError(t, store.Migrate(ctx))

	calls := 0
	apply := func(ctx context.Context, chunk []entities.Activity) error {
		calls++
		return store.WriteActivities(ctx, chunk)
	}
	colliding := []entities.Activity{
		{ID: "000-x", UserID: 0, Mode: entities.Labeled("walk")},
		{ID: "000-x", UserID: 0, Mode: entities.Labeled("bus")},
	}
	w := batch.NewWriter(batch.Config{InitialInterval: time.Millisecond})
	_, err := batch.Write(ctx, w, entities.CollectionActivities, colliding, apply)
	require.ErrorIs(t, err, batch.ErrWrite)
	assert.Equal(t, 1, calls, "colliding identifiers are not retried")
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupMongoContainer(t)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	imported, err := store.Imported(ctx)
	require.NoError(t, err)
	assert.False(t, imported)
}
