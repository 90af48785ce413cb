// Package testutil provides shared test fixtures: small GeoLife-shaped
// datasets that can be served from memory or written to a temp directory.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

// Common test timeout constants.
const (
	DefaultTestTimeout = 5 * time.Second
	LongTestTimeout    = 2 * time.Minute
)

// DefaultStep is the interval between consecutive fixture readings.
const DefaultStep = 5 * time.Second

// Activity describes one generated .plt file.
type Activity struct {
	Stem   string
	Start  time.Time
	Points int
	// ExtraLines are appended verbatim after the generated rows.
	ExtraLines []string
}

// End returns the timestamp of the last generated reading.
func (a Activity) End() time.Time {
	if a.Points == 0 {
		return a.Start
	}
	return a.Start.Add(time.Duration(a.Points-1) * DefaultStep)
}

// Label is one labels.txt row.
type Label struct {
	Start time.Time
	End   time.Time
	Mode  string
}

// User describes one data/<Dir> directory.
type User struct {
	Dir        string
	Labeled    bool
	Labels     []Label
	Activities []Activity
}

// BuildFS renders users into an in-memory dataset.
func BuildFS(users ...User) fstest.MapFS {
	fsys := fstest.MapFS{}
	var labeled []string

	for _, u := range users {
		fsys["data/"+u.Dir] = &fstest.MapFile{Mode: os.ModeDir | 0o755}
		if u.Labeled {
			labeled = append(labeled, u.Dir)
		}
		if u.Labels != nil {
			fsys["data/"+u.Dir+"/labels.txt"] = &fstest.MapFile{Data: LabelsFile(u.Labels)}
		}
		for _, a := range u.Activities {
			fsys["data/"+u.Dir+"/Trajectory/"+a.Stem+".plt"] = &fstest.MapFile{Data: PLT(a)}
		}
	}
	fsys["labeled_ids.txt"] = &fstest.MapFile{Data: []byte(strings.Join(labeled, "\n") + "\n")}
	return fsys
}

// PLT renders an activity file: six header lines followed by Points readings.
func PLT(a Activity) []byte {
	var b strings.Builder
	b.WriteString("Geolife trajectory\nWGS 84\nAltitude is in Feet\nReserved 3\n")
	b.WriteString("0,2,255,My Track,0,0,2,8421376\n0\n")
	for i := range a.Points {
		ts := a.Start.Add(time.Duration(i) * DefaultStep)
		days := float64(ts.Sub(time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC))) / float64(24*time.Hour)
		fmt.Fprintf(&b, "%.6f,%.6f,0,%d,%.10f,%s,%s\n",
			39.984702+float64(i)*0.0001, 116.318417+float64(i)*0.0001, 492+i, days,
			ts.Format("2006-01-02"), ts.Format("15:04:05"))
	}
	for _, line := range a.ExtraLines {
		b.WriteString(line + "\n")
	}
	return []byte(b.String())
}

// LabelsFile renders labels.txt with its header line.
func LabelsFile(labels []Label) []byte {
	var b strings.Builder
	b.WriteString("Start Time\tEnd Time\tTransportation Mode\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "%s\t%s\t%s\n",
			l.Start.Format("2006/01/02 15:04:05"), l.End.Format("2006/01/02 15:04:05"), l.Mode)
	}
	return []byte(b.String())
}

// WriteDir writes fsys below a fresh temp directory and returns its path.
func WriteDir(t *testing.T, fsys fstest.MapFS) string {
	t.Helper()
	root := t.TempDir()
	for name, file := range fsys {
		target := filepath.Join(root, filepath.FromSlash(name))
		if file.Mode.IsDir() {
			require.NoError(t, os.MkdirAll(target, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, file.Data, 0o644))
	}
	return root
}

// Standard fixture timestamps.
var (
	WalkStart = time.Date(2008, 10, 23, 2, 53, 4, 0, time.UTC)
	BusStart  = time.Date(2008, 10, 24, 9, 0, 0, 0, time.UTC)
	BikeStart = time.Date(2009, 3, 1, 17, 30, 0, 0, time.UTC)
)

// StandardFixture is two users, three activities and fifty track points once
// the oversized file is filtered out:
//
//   - 000 (labeled): 20081023025304 (20 points, exact "walk" label),
//     20081024090000 (10 points, label off by one second)
//   - 001 (not labeled): 20090301173000 (20 points), 20090302000000 (2501
//     points, over the default limit)
//
// The dataset also carries a hidden directory and a stray file under data/.
func StandardFixture() fstest.MapFS {
	walk := Activity{Stem: "20081023025304", Start: WalkStart, Points: 20}
	bus := Activity{Stem: "20081024090000", Start: BusStart, Points: 10}
	bike := Activity{Stem: "20090301173000", Start: BikeStart, Points: 20}
	huge := Activity{Stem: "20090302000000", Start: time.Date(2009, 3, 2, 0, 0, 0, 0, time.UTC), Points: 2501}

	fsys := BuildFS(
		User{
			Dir:     "000",
			Labeled: true,
			Labels: []Label{
				{Start: walk.Start, End: walk.End(), Mode: "walk"},
				{Start: walk.Start, End: walk.End(), Mode: "run"},
				{Start: bus.Start, End: bus.End().Add(time.Second), Mode: "bus"},
			},
			Activities: []Activity{walk, bus},
		},
		User{
			Dir:        "001",
			Activities: []Activity{bike, huge},
		},
	)
	fsys["data/.DS_Store"] = &fstest.MapFile{Data: []byte("junk")}
	fsys["data/.hidden"] = &fstest.MapFile{Mode: os.ModeDir | 0o755}
	return fsys
}
