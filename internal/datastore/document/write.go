package document

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/geolife/importer/internal/batch"
	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
)

// Index names created by Finalize.
const (
	locationIndex   = "location_2dsphere"
	activityIDIndex = "activity_id_1"
	datetimeIndex   = "datetime_1"
)

// WriteUsers inserts user documents.
func (s *Store) WriteUsers(ctx context.Context, chunk []entities.User) error {
	return s.insert(ctx, entities.CollectionUsers, toUserDocs(chunk))
}

// WriteActivities inserts activity documents with their resolved modes.
func (s *Store) WriteActivities(ctx context.Context, chunk []entities.Activity) error {
	return s.insert(ctx, entities.CollectionActivities, toActivityDocs(chunk))
}

// WriteTrackPoints inserts track point documents.
func (s *Store) WriteTrackPoints(ctx context.Context, chunk []entities.TrackPoint) error {
	return s.insert(ctx, entities.CollectionTrackPoints, toTrackPointDocs(chunk))
}

// insert writes docs unordered. Identifiers are deterministic, so when a
// retried chunk fails only on duplicate keys every document is present and
// the chunk counts as applied. On a first attempt duplicates mean colliding
// identifiers and fail the chunk without retrying.
func (s *Store) insert(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}
	if !onlyDuplicates(err) {
		return s.dbError(err, "insert", collection)
	}
	if !duplicatesApplied(ctx) {
		return batch.Permanent(s.dbError(err, "insert", collection))
	}
	s.log.WithContext(ctx).Warn("chunk already present, treating as applied",
		logger.String("collection", collection),
		logger.Int("documents", len(docs)),
		logger.Int("attempt", batch.Attempt(ctx)))
	return nil
}

// duplicatesApplied reports whether duplicate keys can only come from an
// earlier attempt of the same chunk.
func duplicatesApplied(ctx context.Context) bool {
	return batch.Attempt(ctx) > 1
}

// onlyDuplicates reports whether err consists of duplicate key write errors
// and nothing else.
func onlyDuplicates(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return false
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if !duplicateKeyCode(we.Code) {
			return false
		}
	}
	return true
}

func duplicateKeyCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

// BackfillModes is a no-op: documents are inserted with resolved modes.
func (s *Store) BackfillModes(context.Context, []entities.Activity) error {
	return nil
}

// trackPointIndexes are the indexes on track_points: the GeoJSON location,
// the activity reference and the timestamp.
func trackPointIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName(locationIndex)},
		{Keys: bson.D{{Key: "activity_id", Value: 1}}, Options: options.Index().SetName(activityIDIndex)},
		{Keys: bson.D{{Key: "datetime", Value: 1}}, Options: options.Index().SetName(datetimeIndex)},
	}
}

// Finalize builds the track point indexes. Probe takes the location index as
// the mark of a completed import.
func (s *Store) Finalize(ctx context.Context) error {
	names, err := s.db.Collection(entities.CollectionTrackPoints).Indexes().CreateMany(ctx, trackPointIndexes())
	if err != nil {
		return s.dbError(err, "create indexes", entities.CollectionTrackPoints)
	}
	s.log.WithContext(ctx).Info("indexes created", logger.Any("indexes", names))
	return nil
}
