package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Import.ChunkWritten("users", 2, 10*time.Millisecond)

	path := filepath.Join(t.TempDir(), "geolife.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `geolife_import_records_written_total{target="users"} 2`)
	assert.Contains(t, string(data), "go_goroutines")
}
