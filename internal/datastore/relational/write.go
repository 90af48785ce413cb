package relational

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geolife/importer/internal/entities"
)

// WriteUsers upserts users keyed on id; has_labels follows the latest import.
func (s *Store) WriteUsers(ctx context.Context, chunk []entities.User) error {
	rows := toUserRows(chunk)
	return s.upsert(ctx, entities.CollectionUsers, &rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"has_labels"}),
	})
}

// WriteActivities upserts activities keyed on the derived id. An existing
// row keeps its transportation mode; the backfill owns that column.
func (s *Store) WriteActivities(ctx context.Context, chunk []entities.Activity) error {
	rows := toActivityRows(chunk)
	return s.upsert(ctx, entities.CollectionActivities, &rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "start_datetime", "end_datetime"}),
	})
}

// WriteTrackPoints upserts track points keyed on "<activity>-<seq>".
func (s *Store) WriteTrackPoints(ctx context.Context, chunk []entities.TrackPoint) error {
	rows := toTrackPointRows(chunk)
	return s.upsert(ctx, entities.CollectionTrackPoints, &rows, clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	})
}

// upsert writes rows in statements of statementBatch rows inside one
// transaction, so a chunk is applied completely or not at all.
func (s *Store) upsert(ctx context.Context, table string, rows any, conflict clause.OnConflict) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(conflict).CreateInBatches(rows, s.statementBatch).Error
	})
	if err != nil {
		return s.dbError(err, "upsert", table)
	}
	return nil
}

// BackfillModes sets transportation_mode for every activity in chunk, one
// UPDATE per distinct mode. Unlabeled activities are reset to ''.
func (s *Store) BackfillModes(ctx context.Context, chunk []entities.Activity) error {
	byMode := make(map[entities.Mode][]string)
	var order []entities.Mode
	for _, a := range chunk {
		if _, ok := byMode[a.Mode]; !ok {
			order = append(order, a.Mode)
		}
		byMode[a.Mode] = append(byMode[a.Mode], a.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, mode := range order {
			ids := byMode[mode]
			for start := 0; start < len(ids); start += s.statementBatch {
				end := min(start+s.statementBatch, len(ids))
				err := tx.Model(&activityRow{}).
					Where("id IN ?", ids[start:end]).
					Update("transportation_mode", mode).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return s.dbError(err, "backfill", entities.CollectionActivities)
	}
	return nil
}

// Finalize refreshes planner statistics after the bulk load.
func (s *Store) Finalize(ctx context.Context) error {
	stmt := "ANALYZE TABLE users, activities, track_points"
	if s.dialect == DialectSQLite {
		stmt = "ANALYZE"
	}
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return s.dbError(err, "analyze", "all")
	}
	return nil
}
