package document

import (
	"time"

	"github.com/geolife/importer/internal/entities"
)

// userDoc is a users document. Activities lists the user's activity ids.
type userDoc struct {
	ID         int      `bson:"_id"`
	HasLabels  bool     `bson:"has_labels"`
	Activities []string `bson:"activities"`
}

// activityDoc is an activities document. TrackPoints lists its point ids.
type activityDoc struct {
	ID                 string        `bson:"_id"`
	UserID             int           `bson:"user_id"`
	StartDatetime      time.Time     `bson:"start_datetime"`
	EndDatetime        time.Time     `bson:"end_datetime"`
	TransportationMode entities.Mode `bson:"transportation_mode"`
	TrackPoints        []string      `bson:"track_points"`
}

// geoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type geoPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

// trackPointDoc is a track_points document. Location is omitted for
// coordinates outside the WGS84 range, which a 2dsphere index rejects.
type trackPointDoc struct {
	ID                 string        `bson:"_id"`
	ActivityID         string        `bson:"activity_id"`
	Latitude           float64       `bson:"latitude"`
	Longitude          float64       `bson:"longitude"`
	Altitude           float64       `bson:"altitude"`
	DateDays           float64       `bson:"date_days"`
	Datetime           time.Time     `bson:"datetime"`
	TransportationMode entities.Mode `bson:"transportation_mode"`
	Location           *geoPoint     `bson:"location,omitempty"`
}

func toUserDocs(users []entities.User) []any {
	docs := make([]any, len(users))
	for i, u := range users {
		docs[i] = userDoc{ID: u.ID, HasLabels: u.HasLabels, Activities: nonNil(u.ActivityIDs)}
	}
	return docs
}

func toActivityDocs(activities []entities.Activity) []any {
	docs := make([]any, len(activities))
	for i, a := range activities {
		docs[i] = activityDoc{
			ID:                 a.ID,
			UserID:             a.UserID,
			StartDatetime:      a.Start.UTC(),
			EndDatetime:        a.End.UTC(),
			TransportationMode: a.Mode,
			TrackPoints:        nonNil(a.TrackPointIDs),
		}
	}
	return docs
}

func toTrackPointDocs(points []entities.TrackPoint) []any {
	docs := make([]any, len(points))
	for i, p := range points {
		docs[i] = trackPointDoc{
			ID:                 p.ID,
			ActivityID:         p.ActivityID,
			Latitude:           p.Latitude,
			Longitude:          p.Longitude,
			Altitude:           p.Altitude,
			DateDays:           p.DateDays,
			Datetime:           p.Time.UTC(),
			TransportationMode: p.Mode,
			Location:           location(p.Latitude, p.Longitude),
		}
	}
	return docs
}

func location(lat, lon float64) *geoPoint {
	if !(lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180) {
		return nil
	}
	return &geoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// nonNil keeps backreference lists as arrays rather than null.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
