// Package metrics provides the Prometheus collectors of the importer.
package metrics

// Label values and histogram bucket configuration.
const (
	// LabelSuccess and LabelError are the status label values.
	LabelSuccess = "success"
	LabelError   = "error"

	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms.
	BucketStart100ms = 0.1
	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)
