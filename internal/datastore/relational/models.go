package relational

import (
	"time"

	"github.com/geolife/importer/internal/entities"
)

// userRow maps the users table.
type userRow struct {
	ID        int  `gorm:"column:id;primaryKey;autoIncrement:false"`
	HasLabels bool `gorm:"column:has_labels"`
}

func (userRow) TableName() string { return entities.CollectionUsers }

// activityRow maps the activities table.
type activityRow struct {
	ID                 string        `gorm:"column:id;primaryKey"`
	UserID             int           `gorm:"column:user_id"`
	StartDatetime      time.Time     `gorm:"column:start_datetime"`
	EndDatetime        time.Time     `gorm:"column:end_datetime"`
	TransportationMode entities.Mode `gorm:"column:transportation_mode;type:varchar(32)"`
}

func (activityRow) TableName() string { return entities.CollectionActivities }

// trackPointRow maps the track_points table.
type trackPointRow struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ActivityID string    `gorm:"column:activity_id"`
	Latitude   float64   `gorm:"column:latitude"`
	Longitude  float64   `gorm:"column:longitude"`
	Altitude   float64   `gorm:"column:altitude"`
	DateDays   float64   `gorm:"column:date_days"`
	Datetime   time.Time `gorm:"column:datetime"`
}

func (trackPointRow) TableName() string { return entities.CollectionTrackPoints }

func toUserRows(users []entities.User) []userRow {
	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{ID: u.ID, HasLabels: u.HasLabels}
	}
	return rows
}

// toActivityRows always stores new activities unlabeled; modes are set by
// the backfill.
func toActivityRows(activities []entities.Activity) []activityRow {
	rows := make([]activityRow, len(activities))
	for i, a := range activities {
		rows[i] = activityRow{
			ID:                 a.ID,
			UserID:             a.UserID,
			StartDatetime:      a.Start.UTC(),
			EndDatetime:        a.End.UTC(),
			TransportationMode: entities.Unlabeled,
		}
	}
	return rows
}

func toTrackPointRows(points []entities.TrackPoint) []trackPointRow {
	rows := make([]trackPointRow, len(points))
	for i, p := range points {
		rows[i] = trackPointRow{
			ID:         p.ID,
			ActivityID: p.ActivityID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Altitude:   p.Altitude,
			DateDays:   p.DateDays,
			Datetime:   p.Time.UTC(),
		}
	}
	return rows
}
