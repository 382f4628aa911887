// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/showlytics/showlytics/internal/analytics"
	"github.com/showlytics/showlytics/internal/metrics"
	"github.com/showlytics/showlytics/internal/models"
)

// The count queries reduce each stream independently to (key) -> count.
// They deliberately never join across tables: the full outer join across
// streams is emulated in the analytics package over the returned maps.

// ImpressionCounts implements analytics.EventSource.
func (db *DB) ImpressionCounts(ctx context.Context, q analytics.Query) (map[analytics.Key]int64, error) {
	return db.experimentStreamCounts(ctx, "impressions", q)
}

// ClickCounts implements analytics.EventSource.
func (db *DB) ClickCounts(ctx context.Context, q analytics.Query) (map[analytics.Key]int64, error) {
	return db.experimentStreamCounts(ctx, "clicks", q)
}

// ViewCounts implements analytics.EventSource. Views carry no variant,
// so counts are keyed by bucket only and the variant filter does not
// apply.
func (db *DB) ViewCounts(ctx context.Context, q analytics.Query) (map[string]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	from, to := dayWindow(q.From, q.To)

	query := fmt.Sprintf(`SELECT %s AS bucket, COUNT(*) FROM views WHERE ts >= ? AND ts < ?`,
		viewBucketExpr(q.GroupBy))
	args := []any{from, to}

	if q.Placement != "" {
		query += " AND placement = ?"
		args = append(args, q.Placement)
	}
	query += " GROUP BY 1"

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveQuery("count", "views", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	defer closeQuietly(rows)

	counts := make(map[string]int64)
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan view count: %w", err)
		}
		counts[bucket] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("view count iteration failed: %w", err)
	}
	return counts, nil
}

// experimentStreamCounts is the shared reducer for the impression and
// click streams, which both carry variant and placement dimensions.
func (db *DB) experimentStreamCounts(ctx context.Context, table string, q analytics.Query) (map[analytics.Key]int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	from, to := dayWindow(q.From, q.To)

	query := fmt.Sprintf("SELECT %s AS bucket", bucketExpr(q.GroupBy))
	if q.ByVariant {
		query += ", variant"
	}
	query += fmt.Sprintf(", COUNT(*) FROM %s WHERE ts >= ? AND ts < ?", table)
	args := []any{from, to}

	if q.Variant != "" {
		query += " AND variant = ?"
		args = append(args, string(q.Variant))
	}
	if q.Placement != "" {
		query += " AND placement = ?"
		args = append(args, q.Placement)
	}

	query += " GROUP BY 1"
	if q.ByVariant {
		query += ", 2"
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveQuery("count", table, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}
	defer closeQuietly(rows)

	counts := make(map[analytics.Key]int64)
	for rows.Next() {
		var key analytics.Key
		var count int64
		if q.ByVariant {
			var variant string
			if err := rows.Scan(&key.Bucket, &variant, &count); err != nil {
				return nil, fmt.Errorf("failed to scan %s count: %w", table, err)
			}
			key.Variant = models.Variant(variant)
		} else {
			if err := rows.Scan(&key.Bucket, &count); err != nil {
				return nil, fmt.Errorf("failed to scan %s count: %w", table, err)
			}
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s count iteration failed: %w", table, err)
	}
	return counts, nil
}

// bucketExpr returns the grouping expression for the experiment streams.
// DuckDB strftime takes (timestamp, format), opposite of SQLite.
func bucketExpr(groupBy analytics.GroupBy) string {
	if groupBy == analytics.GroupByPlacement {
		return "placement"
	}
	return "strftime(ts, '%Y-%m-%d')"
}

// viewBucketExpr is bucketExpr for the views table, whose placement
// column is nullable.
func viewBucketExpr(groupBy analytics.GroupBy) string {
	if groupBy == analytics.GroupByPlacement {
		return "COALESCE(placement, '')"
	}
	return "strftime(ts, '%Y-%m-%d')"
}

// dayWindow widens [from, to] to UTC day boundaries, inclusive of the
// whole final day.
func dayWindow(from, to time.Time) (time.Time, time.Time) {
	start := truncateDay(from)
	end := truncateDay(to).Add(24 * time.Hour)
	return start, end
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
