// Package metrics defines Prometheus metrics for the scan pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch metrics
var (
	// ScansDispatchedTotal tracks scan submissions to the engine by outcome.
	ScansDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_dispatched_total",
			Help: "Total number of scan dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// MultiScansDispatchedTotal tracks batch submissions by outcome.
	MultiScansDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multi_scans_dispatched_total",
			Help: "Total number of multi-scan dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Callback / reconciliation metrics
var (
	// CallbacksReceivedTotal tracks result callbacks by payload status.
	CallbacksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_callbacks_total",
			Help: "Total number of result callbacks by payload status",
		},
		[]string{"status"},
	)

	// ReconcileDuration tracks per-scan reconciliation duration.
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Reconciliation duration per scan in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// FindingsReconciledTotal tracks reconciled findings by carried decision.
	FindingsReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findings_reconciled_total",
			Help: "Total number of findings written during reconciliation by inherited decision",
		},
		[]string{"decision"},
	)
)

// Sweeper metrics
var (
	// ScansTimedOutTotal counts scans the sweeper reclassified as timed out.
	ScansTimedOutTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scans_timed_out_total",
			Help: "Total number of running scans reclassified as timed out",
		},
	)
)
