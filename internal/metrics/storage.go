package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapted from the teacher's crypto.go: same counter/histogram shape,
// repurposed from crypto operation accounting to the storage layer's
// compare-and-set SQL statements (spec.md §4.6: every mutating ticket
// operation is a single conditional UPDATE).
var (
	// StorageCASAttempts tracks every CAS statement by table and outcome.
	StorageCASAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cas_attempts_total",
			Help:      "Total number of compare-and-set storage operations by table and outcome",
		},
		[]string{"table", "outcome"}, // event_data/events, applied/conflict/error
	)

	// StorageQueryDuration tracks query latency by store and operation.
	StorageQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)
)
