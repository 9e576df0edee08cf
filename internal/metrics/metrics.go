// Package metrics defines Prometheus metrics for lolrus storage operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

var (
	// OperationsTotal counts async operations by type and terminal status.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lolrus_operations_total",
			Help: "Async operations by type and terminal status",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration observes async operation duration in seconds.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lolrus_operation_duration_seconds",
			Help:    "Async operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 4, 10),
		},
		[]string{"operation"},
	)

	// BytesUploadedTotal counts bytes handed to the upload transport.
	BytesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lolrus_bytes_uploaded_total",
			Help: "Total bytes uploaded",
		},
	)

	// BytesDownloadedTotal counts bytes received from the download transport.
	BytesDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lolrus_bytes_downloaded_total",
			Help: "Total bytes downloaded",
		},
	)

	// DeleteBatchesTotal counts batched delete calls issued to the provider.
	DeleteBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lolrus_delete_batches_total",
			Help: "Total batched delete calls issued",
		},
	)

	// ObjectsDeletedTotal counts keys submitted in successful delete batches.
	ObjectsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lolrus_objects_deleted_total",
			Help: "Total objects deleted",
		},
	)
)

// Register registers all collectors with the default registry. It must be
// called explicitly (typically from main) so registration can be made
// conditional on configuration. Safe to call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationDuration,
			BytesUploadedTotal,
			BytesDownloadedTotal,
			DeleteBatchesTotal,
			ObjectsDeletedTotal,
		)
		// Seed the vec so it appears in /metrics output before any
		// operation has run.
		OperationsTotal.WithLabelValues("delete", "completed")
	})
}
