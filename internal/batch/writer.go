// Package batch writes large record sets to a sink in bounded chunks. Each
// chunk is applied by a caller supplied function that must be atomic; a failed
// chunk is retried with exponential backoff and surfaces as a WriteError once
// the retry budget is spent. Chunks of one target are written sequentially.
package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/geolife/importer/internal/errors"
	"github.com/geolife/importer/internal/logger"
)

// DefaultChunkSize is the default number of records per chunk.
const DefaultChunkSize = 120_000

// Retry defaults.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// ErrWrite marks a chunk that could not be applied after all retries.
var ErrWrite = errors.NewStd("batch write failed")

// ApplyFunc writes one chunk. It must either apply the whole chunk or nothing.
type ApplyFunc[T any] func(ctx context.Context, chunk []T) error

// Recorder receives per-chunk outcomes. The metrics package implements it.
type Recorder interface {
	ChunkWritten(target string, records int, elapsed time.Duration)
	ChunkRetried(target string)
	ChunkFailed(target string)
}

// Config configures a Writer.
type Config struct {
	ChunkSize       int
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          logger.Logger
	Recorder        Recorder
}

// Writer chunks record sets and applies them with retries.
type Writer struct {
	chunkSize       int
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	log             logger.Logger
	recorder        Recorder
}

// NewWriter creates a Writer. Zero fields take their defaults; a negative
// MaxRetries disables retrying.
func NewWriter(cfg Config) *Writer {
	w := &Writer{
		chunkSize:       cfg.ChunkSize,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		recorder:        cfg.Recorder,
	}
	if w.chunkSize <= 0 {
		w.chunkSize = DefaultChunkSize
	}
	switch {
	case w.maxRetries == 0:
		w.maxRetries = DefaultMaxRetries
	case w.maxRetries < 0:
		w.maxRetries = 0
	}
	if w.initialInterval <= 0 {
		w.initialInterval = DefaultInitialInterval
	}
	if w.maxInterval <= 0 {
		w.maxInterval = DefaultMaxInterval
	}
	if w.recorder == nil {
		w.recorder = noopRecorder{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
	}
	w.log = log.Module("batch")
	return w
}

// ChunkSize returns the configured chunk size.
func (w *Writer) ChunkSize() int {
	return w.chunkSize
}

// Result summarizes a Write call.
type Result struct {
	Chunks  int
	Records int
	Retries int
}

// Chunks splits records into consecutive slices of at most size elements.
// The slices share the backing array of records.
func Chunks[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end:end])
	}
	return chunks
}

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the chunk write running under
// ctx, or 0 outside Write. Sinks use it to tell a retry from a first write.
func Attempt(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

// Permanent marks an apply error as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Write applies records to target chunk by chunk. The first chunk that still
// fails after retries aborts the call; earlier chunks stay applied.
func Write[T any](ctx context.Context, w *Writer, target string, records []T, apply ApplyFunc[T]) (Result, error) {
	log := w.log.WithContext(ctx).With(logger.String("target", target))
	chunks := Chunks(records, w.chunkSize)
	result := Result{}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := time.Now()
		attempts, err := applyWithRetry(ctx, w, target, i, chunk, apply)
		result.Retries += attempts - 1
		if err != nil {
			w.recorder.ChunkFailed(target)
			return result, writeError(err, target, i, len(chunks), len(chunk), attempts)
		}

		elapsed := time.Since(start)
		w.recorder.ChunkWritten(target, len(chunk), elapsed)
		result.Chunks++
		result.Records += len(chunk)

		log.Debug("chunk written",
			logger.Int("chunk", i+1),
			logger.Int("chunks", len(chunks)),
			logger.Int("records", len(chunk)),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
	}
	return result, nil
}

// applyWithRetry runs apply until it succeeds, returns a permanent error, the
// context ends, or the retry budget is spent. It returns the attempt count.
func applyWithRetry[T any](ctx context.Context, w *Writer, target string, index int, chunk []T, apply ApplyFunc[T]) (int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.initialInterval
	policy.MaxInterval = w.maxInterval
	policy.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		attempts++
		return apply(context.WithValue(ctx, attemptKey{}, attempts), chunk)
	}
	notify := func(err error, wait time.Duration) {
		w.recorder.ChunkRetried(target)
		w.log.WithContext(ctx).Warn("chunk write failed, retrying",
			logger.String("target", target),
			logger.Int("chunk", index+1),
			logger.Int("attempt", attempts),
			logger.Duration("wait", wait),
			logger.Error(err))
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(w.maxRetries)), ctx)
	err := backoff.RetryNotify(op, retry, notify)
	return attempts, err
}

func writeError(err error, target string, index, total, size, attempts int) error {
	return errors.New(fmt.Errorf("%w: %s chunk %d/%d (%d records) after %d attempts: %w",
		ErrWrite, target, index+1, total, size, attempts, err)).
		Component("batch").
		Category(errors.CategoryDatabase).
		Context("target", target).
		Context("chunk_index", index).
		Context("chunk_size", size).
		Context("attempts", attempts).
		Build()
}

type noopRecorder struct{}

func (noopRecorder) ChunkWritten(string, int, time.Duration) {}
func (noopRecorder) ChunkRetried(string)                     {}
func (noopRecorder) ChunkFailed(string)                      {}
