// Package backref builds the embedded child-id lists of the document model.
package backref

import (
	"fmt"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
)

// ErrOrphan is returned when a child references a parent missing from the run.
var ErrOrphan = errors.NewStd("record references an unknown parent")

// Attach groups activities by user and track points by activity and stores the
// resulting id lists on the parents, in input order. Parents without children
// get an empty, non-nil list. Track points also receive their activity's mode.
func Attach(users []entities.User, activities []entities.Activity, points []entities.TrackPoint) error {
	userIndex := make(map[int]int, len(users))
	for i := range users {
		userIndex[users[i].ID] = i
		users[i].ActivityIDs = make([]string, 0)
	}

	activityIndex := make(map[string]int, len(activities))
	for i := range activities {
		a := &activities[i]
		activityIndex[a.ID] = i
		a.TrackPointIDs = make([]string, 0)

		ui, ok := userIndex[a.UserID]
		if !ok {
			return orphanError("activity", a.ID, "user", fmt.Sprint(a.UserID))
		}
		users[ui].ActivityIDs = append(users[ui].ActivityIDs, a.ID)
	}

	for i := range points {
		p := &points[i]
		ai, ok := activityIndex[p.ActivityID]
		if !ok {
			return orphanError("track point", p.ID, "activity", p.ActivityID)
		}
		activities[ai].TrackPointIDs = append(activities[ai].TrackPointIDs, p.ID)
		p.Mode = activities[ai].Mode
	}
	return nil
}

func orphanError(kind, id, parentKind, parentID string) error {
	return errors.New(fmt.Errorf("%w: %s %s has no %s %s", ErrOrphan, kind, id, parentKind, parentID)).
		Component("backref").
		Category(errors.CategoryValidation).
		Context("record_id", id).
		Context("parent_id", parentID).
		Build()
}
