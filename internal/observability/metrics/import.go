package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics contains the collectors of one import process.
type ImportMetrics struct {
	recordsWrittenTotal *prometheus.CounterVec
	chunkDuration       *prometheus.HistogramVec
	chunkRetriesTotal   *prometheus.CounterVec
	chunkFailuresTotal  *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	stageRunsTotal      *prometheus.CounterVec
	extractedRecords    *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewImportMetrics creates the collectors and registers them with registry.
func NewImportMetrics(registry prometheus.Registerer) (*ImportMetrics, error) {
	m := &ImportMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ImportMetrics) initMetrics() {
	m.recordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolife_import_records_written_total",
			Help: "Records applied to the store, by target collection or table",
		},
		[]string{"target"},
	)

	m.chunkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geolife_import_chunk_duration_seconds",
			Help:    "Time taken to apply one chunk, retries included",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15), // 10ms to ~160s
		},
		[]string{"target"},
	)

	m.chunkRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolife_import_chunk_retries_total",
			Help: "Chunk write attempts that failed and were retried",
		},
		[]string{"target"},
	)

	m.chunkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolife_import_chunk_failures_total",
			Help: "Chunks that could not be applied after all retries",
		},
		[]string{"target"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geolife_import_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~7m
		},
		[]string{"stage"},
	)

	m.stageRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolife_import_stage_runs_total",
			Help: "Pipeline stage executions by outcome",
		},
		[]string{"stage", "status"},
	)

	m.extractedRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geolife_import_extracted_records",
			Help: "Records produced by the last extraction, by kind",
		},
		[]string{"kind"},
	)

	m.collectors = []prometheus.Collector{
		m.recordsWrittenTotal,
		m.chunkDuration,
		m.chunkRetriesTotal,
		m.chunkFailuresTotal,
		m.stageDuration,
		m.stageRunsTotal,
		m.extractedRecords,
	}
}

// ChunkWritten records a successfully applied chunk.
func (m *ImportMetrics) ChunkWritten(target string, records int, elapsed time.Duration) {
	m.recordsWrittenTotal.WithLabelValues(target).Add(float64(records))
	m.chunkDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}

// ChunkRetried records a failed attempt that will be retried.
func (m *ImportMetrics) ChunkRetried(target string) {
	m.chunkRetriesTotal.WithLabelValues(target).Inc()
}

// ChunkFailed records a chunk that exhausted its retries.
func (m *ImportMetrics) ChunkFailed(target string) {
	m.chunkFailuresTotal.WithLabelValues(target).Inc()
}

// StageFinished records the duration and outcome of a pipeline stage.
func (m *ImportMetrics) StageFinished(stage string, elapsed time.Duration, err error) {
	status := LabelSuccess
	if err != nil {
		status = LabelError
	}
	m.stageRunsTotal.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SetExtracted records the size of the extracted record set of one kind.
func (m *ImportMetrics) SetExtracted(kind string, n int) {
	m.extractedRecords.WithLabelValues(kind).Set(float64(n))
}

// Describe implements the Collector interface
func (m *ImportMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ImportMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}
