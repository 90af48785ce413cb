package relational

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/pipeline"
)

//go:embed migrations
var migrationFiles embed.FS

// tables lists the schema parents first. Wipe drops in reverse.
var tables = []string{
	entities.CollectionUsers,
	entities.CollectionActivities,
	entities.CollectionTrackPoints,
}

// migration is one embedded SQL file.
type migration struct {
	name       string
	statements []string
}

// loadMigrations reads the dialect's migration files in lexicographic order.
func loadMigrations(dialect string) ([]migration, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %s: %w", dialect, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(migrationFiles, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, migration{name: name, statements: splitStatements(string(data))})
	}
	return migrations, nil
}

// splitStatements splits a migration file on semicolons. Migration files
// contain no semicolons inside literals.
func splitStatements(sql string) []string {
	var out []string
	for stmt := range strings.SplitSeq(sql, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate applies every migration inside one transaction. All statements are
// CREATE ... IF NOT EXISTS, so applying them again is a no-op. MySQL commits
// DDL implicitly, so there a failed migration can leave earlier tables behind;
// re-running Migrate then completes the schema.
func (s *Store) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations(s.dialect)
	if err != nil {
		return pipeline.SchemaError(s.dialect, err)
	}
	return s.applyMigrations(ctx, migrations)
}

func (s *Store) applyMigrations(ctx context.Context, migrations []migration) error {
	log := s.log.WithContext(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range migrations {
			for _, stmt := range m.statements {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("migration %s: %w", m.name, err)
				}
			}
			log.Info("migration applied", logger.String("migration", m.name))
		}
		return nil
	})
	if err != nil {
		log.Error("migration rolled back", logger.Error(err))
		return pipeline.SchemaError(s.dialect, err)
	}
	return nil
}

// Wipe drops track_points, activities and users in that order.
func (s *Store) Wipe(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for i := len(tables) - 1; i >= 0; i-- {
		table := tables[i]
		if err := db.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return s.dbError(err, "drop", table)
		}
		s.log.WithContext(ctx).Info("table dropped", logger.String("table", table))
	}
	return nil
}
