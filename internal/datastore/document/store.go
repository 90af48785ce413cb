// Package document is the denormalized sink: users, activities and
// track_points collections in MongoDB where parents embed the ids of their
// children. Collections are written with plain inserts, so an import requires
// empty collections and a re-import requires a wipe.
package document

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
)

const (
	sinkName       = "mongodb"
	defaultTimeout = 10 * time.Second
)

// collections lists parents first. Wipe drops in reverse.
var collections = []string{
	entities.CollectionUsers,
	entities.CollectionActivities,
	entities.CollectionTrackPoints,
}

// Config configures a Store.
type Config struct {
	URI      string
	Database string
	// Timeout bounds server selection and the connectivity check.
	Timeout time.Duration
	Logger  logger.Logger
}

// Store implements pipeline.Sink on a MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     logger.Logger
}

var _ pipeline.Sink = (*Store)(nil)

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout).
		SetAppName("geolife-importer"))
	if err != nil {
		return nil, connectError(err, cfg.Database)
	}

	s := &Store{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: timeout,
		log:     log.Module("datastore").Module(sinkName),
	}
	if err := s.ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, connectError(err, cfg.Database)
	}
	return s, nil
}

func connectError(err error, database string) error {
	return errors.New(fmt.Errorf("failed to connect to MongoDB: %w", err)).
		Component("datastore.document").
		Category(errors.CategoryNetwork).
		Context("database", database).
		Build()
}

func (s *Store) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Name returns "mongodb".
func (s *Store) Name() string { return sinkName }

// Capabilities reports an insert-only sink that embeds backreferences.
func (s *Store) Capabilities() pipeline.Capabilities {
	return pipeline.Capabilities{Backreferences: true}
}

// Database exposes the database handle for verification queries in tests.
func (s *Store) Database() *mongo.Database { return s.db }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// existing returns which of the importer's collections exist.
func (s *Store) existing(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: collections}}}})
	if err != nil {
		return nil, s.dbError(err, "list collections", "")
	}
	return names, nil
}

// Probe reports Uninitialized unless all collections exist, Seeded when the
// indexes built by Finalize exist, and SchemaReady otherwise.
func (s *Store) Probe(ctx context.Context) (pipeline.State, error) {
	names, err := s.existing(ctx)
	if err != nil {
		return pipeline.Uninitialized, err
	}
	for _, c := range collections {
		if !slices.Contains(names, c) {
			return pipeline.Uninitialized, nil
		}
	}

	specs, err := s.db.Collection(entities.CollectionTrackPoints).Indexes().ListSpecifications(ctx)
	if err != nil {
		return pipeline.Uninitialized, s.dbError(err, "list indexes", entities.CollectionTrackPoints)
	}
	for _, spec := range specs {
		if spec.Name == locationIndex {
			return pipeline.Seeded, nil
		}
	}
	return pipeline.SchemaReady, nil
}

// Imported reports whether any collection holds a document.
func (s *Store) Imported(ctx context.Context) (bool, error) {
	for _, c := range collections {
		n, err := s.db.Collection(c).CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
		if err != nil {
			return false, s.dbError(err, "count", c)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Counts returns the document count of each collection.
func (s *Store) Counts(ctx context.Context) (entities.Counts, error) {
	var c entities.Counts
	targets := []*int64{&c.Users, &c.Activities, &c.TrackPoints}
	for i, name := range collections {
		n, err := s.db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return c, s.dbError(err, "count", name)
		}
		*targets[i] = n
	}
	return c, nil
}

// Migrate creates the missing collections. If a creation fails the
// collections created by this call are dropped again.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ping(ctx); err != nil {
		return pipeline.SchemaError(sinkName, err)
	}
	names, err := s.existing(ctx)
	if err != nil {
		return pipeline.SchemaError(sinkName, err)
	}

	log := s.log.WithContext(ctx)
	var created []string
	for _, c := range collections {
		if slices.Contains(names, c) {
			continue
		}
		if err := s.db.CreateCollection(ctx, c); err != nil {
			for _, done := range created {
				if dropErr := s.db.Collection(done).Drop(ctx); dropErr != nil {
					log.Error("failed to roll back collection", logger.String("collection", done), logger.Error(dropErr))
				}
			}
			return pipeline.SchemaError(sinkName, fmt.Errorf("create collection %s: %w", c, err))
		}
		created = append(created, c)
		log.Info("collection created", logger.String("collection", c))
	}
	return nil
}

// Wipe drops track_points, activities and users. Dropping a missing
// collection is not an error.
func (s *Store) Wipe(ctx context.Context) error {
	for i := len(collections) - 1; i >= 0; i-- {
		c := collections[i]
		if err := s.db.Collection(c).Drop(ctx); err != nil {
			return s.dbError(err, "drop", c)
		}
		s.log.WithContext(ctx).Info("collection dropped", logger.String("collection", c))
	}
	return nil
}

func (s *Store) dbError(err error, op, collection string) error {
	return errors.New(fmt.Errorf("%s %s: %w", op, collection, err)).
		Component("datastore.document").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("collection", collection).
		Build()
}
