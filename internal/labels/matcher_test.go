package labels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geolife/importer/internal/entities"
)

var (
	t1 = time.Date(2008, 10, 23, 2, 53, 4, 0, time.UTC)
	t2 = time.Date(2008, 10, 23, 3, 10, 0, 0, time.UTC)
)

func activity(userID int, start, end time.Time) entities.Activity {
	return entities.Activity{ID: "a", UserID: userID, Start: start, End: end}
}

func TestMatch_ExactIntervalOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels []entities.Label
		want   entities.Mode
	}{
		{
			name:   "exact match",
			labels: []entities.Label{{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("walk")}},
			want:   entities.Labeled("walk"),
		},
		{
			name:   "end off by one second",
			labels: []entities.Label{{UserID: 1, Start: t1, End: t2.Add(time.Second), Mode: entities.Labeled("walk")}},
			want:   entities.Unlabeled,
		},
		{
			name:   "containing interval is not a match",
			labels: []entities.Label{{UserID: 1, Start: t1.Add(-time.Hour), End: t2.Add(time.Hour), Mode: entities.Labeled("bus")}},
			want:   entities.Unlabeled,
		},
		{
			name:   "other user",
			labels: []entities.Label{{UserID: 2, Start: t1, End: t2, Mode: entities.Labeled("walk")}},
			want:   entities.Unlabeled,
		},
		{
			name: "first duplicate wins",
			labels: []entities.Label{
				{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("walk")},
				{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("run")},
			},
			want: entities.Labeled("walk"),
		},
		{
			name: "no labels",
			want: entities.Unlabeled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := activity(1, t1, t2)
			assert.Equal(t, tt.want, NewMatcher(tt.labels).Match(&a))
		})
	}
}

func TestMatch_IgnoresLocation(t *testing.T) {
	t.Parallel()

	oslo, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		t.Skip("timezone database unavailable")
	}
	m := NewMatcher([]entities.Label{{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("taxi")}})
	a := activity(1, t1.In(oslo), t2.In(oslo))
	assert.Equal(t, entities.Labeled("taxi"), m.Match(&a))
}

func TestApply(t *testing.T) {
	t.Parallel()

	m := NewMatcher([]entities.Label{
		{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("walk")},
		{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("car")},
	})
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Duplicates())

	activities := []entities.Activity{
		activity(1, t1, t2),
		activity(1, t2, t2.Add(time.Minute)),
		{UserID: 1, Start: t1, End: t2, Mode: entities.Labeled("stale")},
	}
	matched := m.Apply(activities)

	assert.Equal(t, 2, matched)
	assert.Equal(t, entities.Labeled("walk"), activities[0].Mode)
	assert.Equal(t, entities.Unlabeled, activities[1].Mode)
	assert.Equal(t, entities.Labeled("walk"), activities[2].Mode)
}
