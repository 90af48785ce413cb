package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/geolife/importer/internal/entities"
	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/identity"
	"github.com/geolife/importer/internal/logger"
)

// contentTTL bounds how long a file read during filtering waits for its parse.
const contentTTL = 5 * time.Minute

// Config configures a Dataset.
type Config struct {
	// ActivityLineLimit is the maximum number of data rows (lines after the
	// header) an activity file may have. Zero means DefaultActivityLineLimit.
	ActivityLineLimit int
	Logger            logger.Logger
}

// Dataset reads the dataset from an fs.FS rooted at the dataset directory.
type Dataset struct {
	fsys      fs.FS
	lineLimit int
	log       logger.Logger

	// contents holds files read while counting lines so ReadActivity can
	// parse them without a second read. Entries are removed on first use.
	contents *cache.Cache

	mu       sync.RWMutex
	userDirs map[int]string
}

var _ Source = (*Dataset)(nil)

// NewDataset creates a Dataset over fsys.
func NewDataset(fsys fs.FS, cfg Config) *Dataset {
	if cfg.ActivityLineLimit <= 0 {
		cfg.ActivityLineLimit = DefaultActivityLineLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	}
	return &Dataset{
		fsys:      fsys,
		lineLimit: cfg.ActivityLineLimit,
		log:       cfg.Logger.Module("source"),
		contents:  cache.New(contentTTL, 2*contentTTL),
		userDirs:  make(map[int]string),
	}
}

// OpenDir opens the dataset rooted at dir on the local filesystem. A missing
// root is fatal.
func OpenDir(dir string, cfg Config) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, readError(err, "open dataset", dir)
	}
	if !info.IsDir() {
		return nil, readError(fmt.Errorf("not a directory"), "open dataset", dir)
	}
	return NewDataset(os.DirFS(dir), cfg), nil
}

// ListUserIDs returns every user directory under data/ whose name is numeric.
func (d *Dataset) ListUserIDs(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(d.fsys, dataDir)
	if err != nil {
		return nil, readError(err, "list users", dataDir)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := identity.UserIDFromDir(entry.Name())
		if !ok {
			d.log.Debug("skipping non-user directory", logger.String("name", entry.Name()))
			continue
		}
		if _, seen := d.userDirs[id]; !seen {
			ids = append(ids, id)
		}
		d.userDirs[id] = entry.Name()
	}
	slices.Sort(ids)
	return ids, nil
}

// ListLabeledUserIDs reads labeled_ids.txt. A missing file is fatal; lines
// that are not integers are skipped.
func (d *Dataset) ListLabeledUserIDs(ctx context.Context) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(d.fsys, labeledIDsFile)
	if err != nil {
		return nil, readError(err, "read labeled ids", labeledIDsFile)
	}

	var ids []int
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil || id < 0 {
			d.log.Warn("skipping invalid labeled user id", logger.String("value", line))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// userDir resolves the on-disk directory name of a user. Ids never listed fall
// back to the canonical zero padded form.
func (d *Dataset) userDir(userID int) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if dir, ok := d.userDirs[userID]; ok {
		return dir
	}
	return identity.UserDir(userID)
}

// ListActivityFiles returns the user's activity files, sorted by name, whose
// data row count is at most the activity line limit. Longer files are dropped
// silently. Unreadable files are skipped with a warning.
func (d *Dataset) ListActivityFiles(ctx context.Context, userID int) ([]string, error) {
	dir := path.Join(dataDir, d.userDir(userID), trajectoryDir)
	entries, err := fs.ReadDir(d.fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.log.Warn("user has no trajectory directory", logger.Int("user_id", userID))
			return nil, nil
		}
		return nil, readError(err, "list activities", dir)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		p := path.Join(dir, entry.Name())
		include, err := d.withinLimit(p)
		if err != nil {
			d.log.Warn("skipping unreadable activity file",
				logger.Int("user_id", userID),
				logger.String("path", p),
				logger.Error(err))
			continue
		}
		if include {
			files = append(files, p)
		}
	}
	return files, nil
}

// withinLimit reports whether (lines - header) <= limit. Files within the
// limit are kept in the content cache for ReadActivity.
func (d *Dataset) withinLimit(p string) (bool, error) {
	data, err := fs.ReadFile(d.fsys, p)
	if err != nil {
		return false, err
	}
	if countLines(data)-HeaderLines > d.lineLimit {
		return false, nil
	}
	d.contents.SetDefault(p, data)
	return true, nil
}

// countLines counts lines the way a line reader does: a final line without a
// trailing newline still counts.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

func (d *Dataset) readFile(p string) ([]byte, error) {
	if cached, ok := d.contents.Get(p); ok {
		d.contents.Delete(p)
		return cached.([]byte), nil
	}
	return fs.ReadFile(d.fsys, p)
}

// ReadActivity parses an activity file. Rows without parseable coordinates or
// timestamp are skipped; altitude and day fraction default to zero when blank.
func (d *Dataset) ReadActivity(ctx context.Context, p string) ([]Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := d.readFile(p)
	if err != nil {
		return nil, readError(err, "read activity", p)
	}

	readings := make([]Reading, 0, countLines(data))
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		if line <= HeaderLines {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		r, err := parseReading(text)
		if err != nil {
			d.log.Debug("skipping malformed track point row",
				logger.String("path", p),
				logger.Int("line", line),
				logger.Error(err))
			continue
		}
		readings = append(readings, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, readError(err, "read activity", p)
	}
	return readings, nil
}

// parseReading parses "lat,lon,0,alt,days,2008-10-23,02:53:04".
func parseReading(row string) (Reading, error) {
	fields := strings.Split(row, ",")
	if len(fields) < 7 {
		return Reading{}, fmt.Errorf("%w: expected 7 fields, got %d", errParse, len(fields))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: latitude: %w", errParse, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: longitude: %w", errParse, err)
	}
	ts, err := time.ParseInLocation(readingLayout,
		strings.TrimSpace(fields[5])+" "+strings.TrimSpace(fields[6]), time.UTC)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: timestamp: %w", errParse, err)
	}

	alt, _ := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	days, _ := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)

	// ParseFloat accepts NaN and Inf; stores reject them as coordinates.
	for _, f := range []struct {
		name  string
		value float64
	}{{"latitude", lat}, {"longitude", lon}, {"altitude", alt}, {"day fraction", days}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return Reading{}, fmt.Errorf("%w: %s is not finite", errParse, f.name)
		}
	}

	return Reading{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		DateDays:  days,
		Time:      ts,
	}, nil
}

// ReadLabels parses data/<user>/labels.txt into intervals. A missing file is
// reported as ErrRead so the caller can treat the user as having no labels.
func (d *Dataset) ReadLabels(ctx context.Context, userID int) ([]entities.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := path.Join(dataDir, d.userDir(userID), labelsFile)
	data, err := fs.ReadFile(d.fsys, p)
	if err != nil {
		return nil, readError(err, "read labels", p)
	}

	var labels []entities.Label
	line := 0
	for row := range strings.Lines(string(data)) {
		line++
		if line <= LabelHeaderLines {
			continue
		}
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		label, err := parseLabel(row, userID)
		if err != nil {
			d.log.Debug("skipping malformed label row",
				logger.String("path", p),
				logger.Int("line", line),
				logger.Error(err))
			continue
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// parseLabel parses "2007/06/26 11:32:29\t2007/06/26 11:40:29\tbus".
func parseLabel(row string, userID int) (entities.Label, error) {
	fields := strings.Split(row, "\t")
	if len(fields) != 3 {
		return entities.Label{}, fmt.Errorf("%w: expected 3 tab separated fields, got %d", errParse, len(fields))
	}
	start, err := time.ParseInLocation(labelLayout, strings.TrimSpace(fields[0]), time.UTC)
	if err != nil {
		return entities.Label{}, fmt.Errorf("%w: start time: %w", errParse, err)
	}
	end, err := time.ParseInLocation(labelLayout, strings.TrimSpace(fields[1]), time.UTC)
	if err != nil {
		return entities.Label{}, fmt.Errorf("%w: end time: %w", errParse, err)
	}
	return entities.Label{
		UserID: userID,
		Start:  start,
		End:    end,
		Mode:   entities.Labeled(fields[2]),
	}, nil
}
