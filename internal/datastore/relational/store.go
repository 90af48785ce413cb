// Package relational is the normalized sink: users, activities and
// track_points tables linked by foreign keys, written with idempotent upserts
// through gorm. MySQL is the production dialect; SQLite serves local imports
// and tests.
package relational

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
)

// Supported dialects.
const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

const (
	// DefaultStatementBatch is the number of rows per INSERT statement.
	DefaultStatementBatch = 1000
	defaultSlowThreshold  = 2 * time.Second
)

// Config configures a Store.
type Config struct {
	Dialect string
	// DSN is a go-sql-driver DSN for MySQL or a file path for SQLite.
	DSN string
	// StatementBatch caps rows per INSERT so statements stay below
	// placeholder limits.
	StatementBatch int
	SlowThreshold  time.Duration
	Logger         logger.Logger
}

// Store implements pipeline.Sink on a SQL database.
type Store struct {
	db             *gorm.DB
	dialect        string
	statementBatch int
	log            logger.Logger
}

var _ pipeline.Sink = (*Store)(nil)

// Open connects to the database described by cfg.
func Open(cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	}
	log = log.Module("datastore").Module(cfg.Dialect)

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowThreshold
	}

	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectMySQL:
		dialector = mysql.Open(cfg.DSN)
	case DialectSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	default:
		return nil, errors.Newf("unsupported relational dialect %q", cfg.Dialect).
			Component("datastore.relational").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLoggerAdapter(log, slow),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)).
			Component("datastore.relational").
			Category(errors.CategoryDatabase).
			Context("dialect", cfg.Dialect).
			Build()
	}

	if cfg.Dialect == DialectSQLite {
		// One writer; parallel connections only contend for the file lock.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	return newStore(db, cfg.Dialect, cfg.StatementBatch, log), nil
}

func newStore(db *gorm.DB, dialect string, statementBatch int, log logger.Logger) *Store {
	if statementBatch <= 0 {
		statementBatch = DefaultStatementBatch
	}
	return &Store{db: db, dialect: dialect, statementBatch: statementBatch, log: log}
}

// sqliteDSN enables foreign keys and WAL on a database file path.
func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Name returns the dialect.
func (s *Store) Name() string { return s.dialect }

// Capabilities reports an upserting sink with a separate mode backfill.
func (s *Store) Capabilities() pipeline.Capabilities {
	return pipeline.Capabilities{Upsert: true, ModeBackfill: true}
}

// DB exposes the gorm handle for verification queries in tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Probe reports SchemaReady when all three tables exist. The relational
// schema records no completion marker, so a finished seed still probes as
// SchemaReady; seeding again is an idempotent upsert.
func (s *Store) Probe(ctx context.Context) (pipeline.State, error) {
	m := s.db.WithContext(ctx).Migrator()
	for _, table := range tables {
		if !m.HasTable(table) {
			return pipeline.Uninitialized, nil
		}
	}
	return pipeline.SchemaReady, nil
}

// Imported reports whether any table holds rows.
func (s *Store) Imported(ctx context.Context) (bool, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return false, err
	}
	return counts.Users+counts.Activities+counts.TrackPoints > 0, nil
}

// Counts returns the row count of each table.
func (s *Store) Counts(ctx context.Context) (entities.Counts, error) {
	var c entities.Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&userRow{}).Count(&c.Users).Error; err != nil {
		return c, s.dbError(err, "count", entities.CollectionUsers)
	}
	if err := db.Model(&activityRow{}).Count(&c.Activities).Error; err != nil {
		return c, s.dbError(err, "count", entities.CollectionActivities)
	}
	if err := db.Model(&trackPointRow{}).Count(&c.TrackPoints).Error; err != nil {
		return c, s.dbError(err, "count", entities.CollectionTrackPoints)
	}
	return c, nil
}

func (s *Store) dbError(err error, op, table string) error {
	return errors.New(fmt.Errorf("%s %s: %w", op, table, err)).
		Component("datastore.relational").
		Category(errors.CategoryDatabase).
		Context("dialect", s.dialect).
		Context("operation", op).
		Context("table", table).
		Build()
}
