// Package identity derives the stable identifiers of imported records. Every
// function is pure: the same source data always yields the same identifiers,
// which is what makes a repeated import an upsert rather than a duplicate.
package identity

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// UserIDFromDir parses a user directory name. Only names made entirely of
// ASCII digits are users; hidden and non-numeric entries are rejected.
func UserIDFromDir(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return id, true
}

// UserDir returns the canonical, zero padded directory name of a user ("010").
func UserDir(userID int) string {
	return fmt.Sprintf("%03d", userID)
}

// FileStem returns the file name of p without directory or extension.
func FileStem(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

// ActivityID composes the activity identifier "<user>-<file stem>", for
// example "010-20081023025304" for data/010/Trajectory/20081023025304.plt.
func ActivityID(userID int, filePath string) string {
	return UserDir(userID) + "-" + FileStem(filePath)
}

// TrackPointID composes "<activity id>-<seq>" where seq is the zero based
// position of the reading among the activity's parsed rows.
func TrackPointID(activityID string, seq int) string {
	return activityID + "-" + strconv.Itoa(seq)
}
