package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportMetrics_Recording(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewImportMetrics(registry)
	require.NoError(t, err)

	m.ChunkWritten("track_points", 120000, 2*time.Second)
	m.ChunkWritten("track_points", 10000, time.Second)
	m.ChunkRetried("track_points")
	m.ChunkFailed("users")
	m.StageFinished("seed", time.Minute, nil)
	m.StageFinished("seed", time.Second, fmt.Errorf("boom"))
	m.SetExtracted("activities", 3)

	assert.InDelta(t, 130000, testutil.ToFloat64(m.recordsWrittenTotal.WithLabelValues("track_points")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.chunkRetriesTotal.WithLabelValues("track_points")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.chunkFailuresTotal.WithLabelValues("users")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stageRunsTotal.WithLabelValues("seed", LabelError)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.extractedRecords.WithLabelValues("activities")), 0)

	count, err := testutil.GatherAndCount(registry, "geolife_import_chunk_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportMetrics_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewImportMetrics(registry)
	require.NoError(t, err)

	_, err = NewImportMetrics(registry)
	assert.Error(t, err)
}
