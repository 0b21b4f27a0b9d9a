package businessflow

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uniqueIDAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raiot_unique_id_allocations_total",
			Help: "Unique ID allocations by result",
		},
		[]string{"result"},
	)
	uniqueIDAllocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raiot_unique_id_allocation_duration_seconds",
			Help:    "Time spent allocating a unique ID, including conflict retries",
			Buckets: prometheus.DefBuckets,
		},
	)
	uniqueIDOrphaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raiot_unique_id_orphaned_total",
			Help: "Unique IDs committed by the counter but never recorded against a member",
		},
	)
)

func allocationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTransactionAborted):
		return "aborted"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
