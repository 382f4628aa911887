// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package metrics exposes Prometheus collectors for the event store and
// the snapshot pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBQueryDuration tracks DuckDB query latency per operation/table.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "showlytics_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// DBQueryErrors counts failed DuckDB queries.
	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showlytics_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// AggregationRuns counts snapshot aggregation runs by outcome.
	AggregationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showlytics_aggregation_runs_total",
			Help: "Total number of snapshot aggregation runs",
		},
		[]string{"outcome"}, // "success" or "error"
	)

	// AggregationDuration tracks wall time of full aggregation runs.
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "showlytics_aggregation_duration_seconds",
			Help:    "Duration of snapshot aggregation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// VariantAssignments counts device-to-variant assignments served.
	VariantAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "showlytics_variant_assignments_total",
			Help: "Total number of variant assignments by variant",
		},
		[]string{"variant"},
	)

	// SnapshotUpserts counts persisted (date, variant) snapshot rows.
	SnapshotUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "showlytics_snapshot_upserts_total",
			Help: "Total number of daily snapshot rows written",
		},
	)
)

// ObserveQuery records one query's duration and error outcome.
func ObserveQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
