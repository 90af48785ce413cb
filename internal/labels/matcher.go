// Package labels assigns transportation modes to activities whose start and
// end timestamps equal a label interval exactly. Overlapping or nested
// intervals never match.
package labels

import (
	"time"

	"github.com/geolife/importer/internal/entities"
)

type intervalKey struct {
	userID int
	start  int64
	end    int64
}

func keyOf(userID int, start, end time.Time) intervalKey {
	return intervalKey{userID: userID, start: start.UnixNano(), end: end.UnixNano()}
}

// Matcher indexes label intervals by (user, start, end).
type Matcher struct {
	modes      map[intervalKey]entities.Mode
	duplicates int
}

// NewMatcher builds a matcher. When several labels share the same
// (user, start, end) the first one wins and the rest are discarded.
func NewMatcher(labels []entities.Label) *Matcher {
	m := &Matcher{modes: make(map[intervalKey]entities.Mode, len(labels))}
	for _, l := range labels {
		k := keyOf(l.UserID, l.Start, l.End)
		if _, exists := m.modes[k]; exists {
			m.duplicates++
			continue
		}
		m.modes[k] = l.Mode
	}
	return m
}

// Len returns the number of distinct intervals.
func (m *Matcher) Len() int {
	return len(m.modes)
}

// Duplicates returns how many labels were discarded as duplicates.
func (m *Matcher) Duplicates() int {
	return m.duplicates
}

// Match returns the mode of the label whose interval equals the activity's
// span, or entities.Unlabeled.
func (m *Matcher) Match(a *entities.Activity) entities.Mode {
	if mode, ok := m.modes[keyOf(a.UserID, a.Start, a.End)]; ok {
		return mode
	}
	return entities.Unlabeled
}

// Apply sets the mode of every activity in place and returns how many matched.
func (m *Matcher) Apply(activities []entities.Activity) int {
	matched := 0
	for i := range activities {
		activities[i].Mode = m.Match(&activities[i])
		if activities[i].Mode.IsLabeled() {
			matched++
		}
	}
	return matched
}
