package pipeline_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/pipeline"
)

// memSink keeps records in maps. With upsert it behaves like the relational
// sink, without it like the document sink.
type memSink struct {
	mu   sync.Mutex
	caps pipeline.Capabilities

	schema      bool
	finalized   bool
	users       map[int]entities.User
	activities  map[string]entities.Activity
	trackPoints map[string]entities.TrackPoint

	calls        []string
	chunkSizes   map[string][]int
	failMigrate  error
	failPoints   int // number of track point chunks that fail before succeeding
	failPointsOn error
}

func newMemSink(upsert bool) *memSink {
	caps := pipeline.Capabilities{Upsert: true, ModeBackfill: true}
	if !upsert {
		caps = pipeline.Capabilities{Backreferences: true}
	}
	s := &memSink{caps: caps, chunkSizes: map[string][]int{}}
	s.reset()
	return s
}

func (s *memSink) reset() {
	s.users = map[int]entities.User{}
	s.activities = map[string]entities.Activity{}
	s.trackPoints = map[string]entities.TrackPoint{}
}

func (s *memSink) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *memSink) Name() string {
	if s.caps.Upsert {
		return "memory-relational"
	}
	return "memory-document"
}

func (s *memSink) Capabilities() pipeline.Capabilities { return s.caps }

func (s *memSink) Wipe(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("wipe")
	s.reset()
	s.schema, s.finalized = false, false
	return nil
}

func (s *memSink) Migrate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("migrate")
	if s.failMigrate != nil {
		return s.failMigrate
	}
	s.schema = true
	return nil
}

func (s *memSink) Probe(context.Context) (pipeline.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.schema:
		return pipeline.Uninitialized, nil
	case s.finalized:
		return pipeline.Seeded, nil
	default:
		return pipeline.SchemaReady, nil
	}
}

func (s *memSink) Imported(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)+len(s.activities)+len(s.trackPoints) > 0, nil
}

func (s *memSink) WriteUsers(_ context.Context, chunk []entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("users")
	s.chunkSizes["users"] = append(s.chunkSizes["users"], len(chunk))
	for _, u := range chunk {
		if _, ok := s.users[u.ID]; ok && !s.caps.Upsert {
			return fmt.Errorf("duplicate user %d", u.ID)
		}
		s.users[u.ID] = u
	}
	return nil
}

func (s *memSink) WriteActivities(_ context.Context, chunk []entities.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("activities")
	for _, a := range chunk {
		if prev, ok := s.activities[a.ID]; ok && s.caps.ModeBackfill {
			a.Mode = prev.Mode
		} else if s.caps.ModeBackfill {
			a.Mode = entities.Unlabeled
		}
		s.activities[a.ID] = a
	}
	return nil
}

func (s *memSink) WriteTrackPoints(_ context.Context, chunk []entities.TrackPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("track_points")
	if s.failPoints > 0 {
		s.failPoints--
		return s.failPointsOn
	}
	s.chunkSizes["track_points"] = append(s.chunkSizes["track_points"], len(chunk))
	for _, p := range chunk {
		s.trackPoints[p.ID] = p
	}
	return nil
}

func (s *memSink) BackfillModes(_ context.Context, chunk []entities.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("backfill")
	for _, a := range chunk {
		stored := s.activities[a.ID]
		stored.Mode = a.Mode
		s.activities[a.ID] = stored
	}
	return nil
}

func (s *memSink) Finalize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("finalize")
	s.finalized = true
	return nil
}

func (s *memSink) Counts(context.Context) (entities.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entities.Counts{
		Users:       int64(len(s.users)),
		Activities:  int64(len(s.activities)),
		TrackPoints: int64(len(s.trackPoints)),
	}, nil
}

func (s *memSink) writeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c != "wipe" && c != "migrate" {
			out = append(out, c)
		}
	}
	return out
}
