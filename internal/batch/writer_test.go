package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolife/importer/internal/errors"
)

type recordingSink struct {
	mu      sync.Mutex
	calls   []int
	stored  int
	failFor int // number of leading calls that fail
	err     error
}

func (s *recordingSink) apply(_ context.Context, chunk []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, len(chunk))
	if s.failFor > 0 {
		s.failFor--
		return s.err
	}
	s.stored += len(chunk)
	return nil
}

type countingRecorder struct {
	written, retried, failed int
}

func (r *countingRecorder) ChunkWritten(string, int, time.Duration) { r.written++ }
func (r *countingRecorder) ChunkRetried(string)                     { r.retried++ }
func (r *countingRecorder) ChunkFailed(string)                      { r.failed++ }

func fastWriter(chunkSize, maxRetries int, rec Recorder) *Writer {
	return NewWriter(Config{
		ChunkSize:       chunkSize,
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Recorder:        rec,
	})
}

func TestWrite_ChunkBoundaries(t *testing.T) {
	t.Parallel()

	records := make([]int, 250_000)
	sink := &recordingSink{}

	res, err := Write(context.Background(), fastWriter(DefaultChunkSize, 0, nil), "track_points", records, sink.apply)
	require.NoError(t, err)

	assert.Equal(t, []int{120_000, 120_000, 10_000}, sink.calls)
	assert.Equal(t, 250_000, sink.stored)
	assert.Equal(t, Result{Chunks: 3, Records: 250_000}, res)
}

func TestChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 10, []int{}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder", 21, 10, []int{10, 10, 1}},
		{"smaller than chunk", 3, 10, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks := Chunks(make([]string, tt.n), tt.size)
			sizes := make([]int, 0, len(chunks))
			for _, c := range chunks {
				sizes = append(sizes, len(c))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestChunks_DoNotAliasOnAppend(t *testing.T) {
	t.Parallel()

	records := []int{1, 2, 3, 4}
	chunks := Chunks(records, 2)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4}, records)
}

func TestWrite_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	sink := &recordingSink{failFor: 2, err: fmt.Errorf("deadlock found")}

	res, err := Write(context.Background(), fastWriter(5, 3, rec), "users", make([]int, 7), sink.apply)
	require.NoError(t, err)

	assert.Equal(t, []int{5, 5, 5, 2}, sink.calls)
	assert.Equal(t, 7, sink.stored)
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 2, rec.retried)
	assert.Equal(t, 2, rec.written)
	assert.Zero(t, rec.failed)
}

func TestWrite_ExhaustedRetriesSurfaceWriteError(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	cause := fmt.Errorf("connection reset")
	sink := &recordingSink{failFor: 100, err: cause}
	records := make([]int, 12)

	// First chunk succeeds, second keeps failing.
	first := true
	apply := func(ctx context.Context, chunk []int) error {
		if first {
			first = false
			return nil
		}
		return sink.apply(ctx, chunk)
	}

	res, err := Write(context.Background(), fastWriter(5, 2, rec), "activities", records, apply)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, res.Chunks, "the committed chunk stays counted")
	assert.Len(t, sink.calls, 3, "one attempt plus two retries")
	assert.Equal(t, 1, rec.failed)

	ctxVals := map[string]any{}
	for _, key := range []string{"target", "chunk_index", "chunk_size", "attempts"} {
		v, ok := errors.ContextValue(err, key)
		require.True(t, ok, key)
		ctxVals[key] = v
	}
	assert.Equal(t, map[string]any{
		"target":      "activities",
		"chunk_index": 1,
		"chunk_size":  5,
		"attempts":    3,
	}, ctxVals)
	assert.Contains(t, err.Error(), "activities chunk 2/3")
}

func TestWrite_ExposesAttemptNumber(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Attempt(context.Background()))

	var seen []int
	apply := func(ctx context.Context, _ []int) error {
		seen = append(seen, Attempt(ctx))
		if len(seen) < 3 {
			return fmt.Errorf("lock wait timeout")
		}
		return nil
	}
	_, err := Write(context.Background(), fastWriter(10, 3, nil), "users", make([]int, 4), apply)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestWrite_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{failFor: 1, err: Permanent(fmt.Errorf("constraint violation"))}

	_, err := Write(context.Background(), fastWriter(10, 5, nil), "users", make([]int, 3), sink.apply)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.Len(t, sink.calls, 1)
	assert.Contains(t, err.Error(), "constraint violation")
}

func TestWrite_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	_, err := Write(ctx, fastWriter(10, 0, nil), "users", make([]int, 3), sink.apply)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.calls)
}

func TestWrite_EmptyInput(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	res, err := Write(context.Background(), fastWriter(10, 0, nil), "users", nil, sink.apply)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, sink.calls)
}

func TestNewWriter_Defaults(t *testing.T) {
	t.Parallel()

	w := NewWriter(Config{})
	assert.Equal(t, DefaultChunkSize, w.ChunkSize())
	assert.Equal(t, DefaultMaxRetries, w.maxRetries)

	noRetry := NewWriter(Config{MaxRetries: -1})
	assert.Zero(t, noRetry.maxRetries)
}
