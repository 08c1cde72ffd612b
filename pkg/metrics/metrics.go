// Package metrics exposes the Prometheus instruments shared across the
// service. Counters are registered once via promauto at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportsTotal counts import runs by source (upload, sync) and outcome.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caixafacil_imports_total",
		Help: "Import runs by source and final status.",
	}, []string{"source", "status"})

	// RowsImportedTotal counts transactions written to storage.
	RowsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caixafacil_rows_imported_total",
		Help: "Transactions inserted by imports and syncs.",
	})

	// DuplicatesSkippedTotal counts rows dropped by dedup.
	DuplicatesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caixafacil_duplicates_skipped_total",
		Help: "Rows skipped because their dedup key already existed.",
	})

	// RowsDefaultedTotal counts rows that received a fallback category.
	RowsDefaultedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caixafacil_rows_defaulted_total",
		Help: "Rows categorized with a generic fallback label.",
	})

	// RowsFailedTotal counts per-row soft failures.
	RowsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caixafacil_rows_failed_total",
		Help: "Statement rows dropped by parse or validation errors.",
	})

	// SyncRunsTotal counts open banking sync executions by outcome.
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caixafacil_sync_runs_total",
		Help: "Open banking sync runs by status.",
	}, []string{"status"})

	// HTTPRequestsTotal counts handled HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caixafacil_http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caixafacil_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
