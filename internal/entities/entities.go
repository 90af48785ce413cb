// Package entities holds the store-agnostic records produced by the import
// pipeline. Store adapters translate them into rows or documents.
package entities

import "time"

// User is one dataset participant, keyed by the integer name of its directory.
type User struct {
	ID        int
	HasLabels bool
	// ActivityIDs is filled by the backreference builder on the document path.
	ActivityIDs []string
}

// Activity is one trajectory file. Start and End are derived from its track
// points, never supplied independently.
type Activity struct {
	ID     string
	UserID int
	Start  time.Time
	End    time.Time
	Mode   Mode
	// TrackPointIDs is filled by the backreference builder on the document path.
	TrackPointIDs []string
}

// TrackPoint is one GPS reading of an activity.
type TrackPoint struct {
	ID         string
	ActivityID string
	Latitude   float64
	Longitude  float64
	Altitude   float64
	// DateDays is the fractional day count since 1899-12-30 stored in the raw row.
	DateDays float64
	Time     time.Time
	// Mode is the owning activity's mode, propagated for the document model.
	Mode Mode
}

// Label is one transportation-mode interval from a user's labels file.
type Label struct {
	UserID int
	Start  time.Time
	End    time.Time
	Mode   Mode
}

// Counts is the number of persisted records of each kind.
type Counts struct {
	Users       int64
	Activities  int64
	TrackPoints int64
}

// Collection names shared by both store adapters and by log/metric labels.
const (
	CollectionUsers       = "users"
	CollectionActivities  = "activities"
	CollectionTrackPoints = "track_points"
)
