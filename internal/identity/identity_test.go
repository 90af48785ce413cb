package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserIDFromDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		wantID int
		wantOK bool
	}{
		{"padded", "010", 10, true},
		{"zero", "000", 0, true},
		{"large", "181", 181, true},
		{"hidden", ".DS_Store", 0, false},
		{"alpha", "abc", 0, false},
		{"negative", "-1", 0, false},
		{"mixed", "01a", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, ok := UserIDFromDir(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestActivityID_Deterministic(t *testing.T) {
	t.Parallel()

	first := ActivityID(10, "data/010/Trajectory/20081023025304.plt")
	second := ActivityID(10, "data/010/Trajectory/20081023025304.plt")

	assert.Equal(t, "010-20081023025304", first)
	assert.Equal(t, first, second)
	assert.Equal(t, "153-20070804033032", ActivityID(153, `C:\geolife\data\153\Trajectory\20070804033032.plt`))
	assert.NotEqual(t, ActivityID(10, "a/1.plt"), ActivityID(11, "a/1.plt"))
}

func TestTrackPointID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "010-20081023025304-0", TrackPointID("010-20081023025304", 0))
	assert.Equal(t, "010-20081023025304-2499", TrackPointID("010-20081023025304", 2499))
}

func TestFileStem(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "20081023025304", FileStem("20081023025304.plt"))
	assert.Equal(t, "noext", FileStem("dir/noext"))
	assert.Equal(t, "archive", FileStem("archive.tar.gz"))
}
