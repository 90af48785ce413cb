package pipeline

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/identity"
	"github.com/geolife/importer/internal/labels"
	"github.com/geolife/importer/internal/logger"
	"github.com/geolife/importer/internal/source"
)

// Extraction is the in-memory result of reading the dataset, in user order.
type Extraction struct {
	Users       []entities.User
	Activities  []entities.Activity
	TrackPoints []entities.TrackPoint

	// Matched is the number of activities that received a mode.
	Matched int
	// Skipped is the number of activity files dropped. Each drop is logged
	// with its reason.
	Skipped int
}

// LabeledActivities returns the activities of users with labels. These are
// the rows the mode backfill rewrites.
func (e *Extraction) LabeledActivities() []entities.Activity {
	labeled := make(map[int]bool, len(e.Users))
	for _, u := range e.Users {
		if u.HasLabels {
			labeled[u.ID] = true
		}
	}
	var out []entities.Activity
	for _, a := range e.Activities {
		if labeled[a.UserID] {
			out = append(out, a)
		}
	}
	return out
}

type userExtraction struct {
	user       entities.User
	activities []entities.Activity
	points     []entities.TrackPoint
	matched    int
	skipped    int
}

// Extract reads every user, assigns identifiers and matches labels. Users are
// processed by up to workers goroutines; the result order does not depend on
// scheduling. Missing user or labeled-id listings abort the run, while a bad
// activity or labels file only skips that file.
func Extract(ctx context.Context, src source.Source, workers int, log logger.Logger) (*Extraction, error) {
	userIDs, err := src.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	labeledIDs, err := src.ListLabeledUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = 1
	}

	results := make([]userExtraction, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, userID := range userIDs {
		hasLabels := slices.Contains(labeledIDs, userID)
		g.Go(func() error {
			r, err := extractUser(gctx, src, userID, hasLabels, log)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Extraction{Users: make([]entities.User, 0, len(results))}
	for i := range results {
		r := &results[i]
		out.Users = append(out.Users, r.user)
		out.Activities = append(out.Activities, r.activities...)
		out.TrackPoints = append(out.TrackPoints, r.points...)
		out.Matched += r.matched
		out.Skipped += r.skipped
	}
	return out, nil
}

func extractUser(ctx context.Context, src source.Source, userID int, hasLabels bool, log logger.Logger) (userExtraction, error) {
	r := userExtraction{user: entities.User{ID: userID, HasLabels: hasLabels}}
	log = log.With(logger.Int("user_id", userID))

	files, err := src.ListActivityFiles(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return r, ctx.Err()
		}
		log.Warn("skipping activities of user", logger.Error(err))
		return r, nil
	}

	seen := make(map[string]string, len(files))
	for _, file := range files {
		id := identity.ActivityID(userID, file)
		if first, dup := seen[id]; dup {
			log.Warn("skipping activity with colliding identifier",
				logger.String("file", file),
				logger.String("activity_id", id),
				logger.String("first_file", first))
			r.skipped++
			continue
		}

		readings, err := src.ReadActivity(ctx, file)
		if err != nil {
			if ctx.Err() != nil {
				return r, ctx.Err()
			}
			log.Warn("skipping unreadable activity", logger.String("file", file), logger.Error(err))
			r.skipped++
			continue
		}
		if len(readings) == 0 {
			log.Warn("skipping activity without valid rows", logger.String("file", file))
			r.skipped++
			continue
		}
		seen[id] = file
		activity, points := buildActivity(userID, file, readings)
		r.activities = append(r.activities, activity)
		r.points = append(r.points, points...)
	}

	if hasLabels {
		userLabels, err := src.ReadLabels(ctx, userID)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return r, ctx.Err()
		case errors.Is(err, source.ErrRead):
			log.Warn("labels unavailable, activities stay unlabeled", logger.Error(err))
		default:
			return r, err
		}
		m := labels.NewMatcher(userLabels)
		if m.Duplicates() > 0 {
			log.Debug("dropped duplicate labels", logger.Int("duplicates", m.Duplicates()))
		}
		r.matched = m.Apply(r.activities)
	}
	return r, nil
}

// buildActivity derives the activity span from its readings and assigns the
// activity and track point identifiers.
func buildActivity(userID int, file string, readings []source.Reading) (entities.Activity, []entities.TrackPoint) {
	activity := entities.Activity{
		ID:     identity.ActivityID(userID, file),
		UserID: userID,
		Start:  readings[0].Time,
		End:    readings[0].Time,
	}
	points := make([]entities.TrackPoint, len(readings))
	for seq, rd := range readings {
		if rd.Time.Before(activity.Start) {
			activity.Start = rd.Time
		}
		if rd.Time.After(activity.End) {
			activity.End = rd.Time
		}
		points[seq] = entities.TrackPoint{
			ID:         identity.TrackPointID(activity.ID, seq),
			ActivityID: activity.ID,
			Latitude:   rd.Latitude,
			Longitude:  rd.Longitude,
			Altitude:   rd.Altitude,
			DateDays:   rd.DateDays,
			Time:       rd.Time,
		}
	}
	return activity, points
}
