package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/geolife/importer/internal/conf"
	"github.com/geolife/importer/internal/datastore/document"
	"github.com/geolife/importer/internal/datastore/relational"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
)

const slowQueryThreshold = 5 * time.Second

// OpenSink connects the sink selected by settings.Sink. The returned function
// releases the connection.
func OpenSink(ctx context.Context, settings *conf.Settings, log logger.Logger) (pipeline.Sink, func() error, error) {
	switch settings.Sink {
	case conf.SinkRelational:
		cfg := relational.Config{
			Dialect:        settings.Relational.Driver,
			StatementBatch: settings.Import.StatementBatch,
			SlowThreshold:  slowQueryThreshold,
			Logger:         log,
		}
		switch settings.Relational.Driver {
		case conf.DriverSQLite:
			cfg.DSN = settings.Relational.Path
		default:
			cfg.DSN = settings.Relational.MySQLDSN()
		}
		store, err := relational.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case conf.SinkDocument:
		store, err := document.Open(ctx, document.Config{
			URI:      settings.Document.MongoURI(),
			Database: settings.Document.Database,
			Timeout:  settings.Document.Timeout,
			Logger:   log,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return store.Close(context.Background()) }, nil

	default:
		return nil, nil, errors.Newf("unknown sink %q", settings.Sink).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
