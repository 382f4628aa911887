// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/showlytics/showlytics/internal/models"
)

// GroupBy selects the bucket shape of the aggregation key.
type GroupBy string

const (
	// GroupByDay buckets events per UTC day (YYYY-MM-DD).
	GroupByDay GroupBy = "day"

	// GroupByPlacement buckets events per placement name.
	GroupByPlacement GroupBy = "placement"
)

// Key identifies one reconciled metric bucket. Variant is empty unless
// the query splits by variant. Views carry no variant dimension, so a
// views-only bucket always surfaces with an empty Variant.
type Key struct {
	Bucket  string
	Variant models.Variant
}

// Query describes one aggregation request.
type Query struct {
	// From and To bound the window, inclusive on both ends at day
	// granularity.
	From time.Time
	To   time.Time

	// GroupBy selects day or placement buckets.
	GroupBy GroupBy

	// ByVariant adds the variant dimension to impression and click keys.
	ByVariant bool

	// Variant filters both experiment streams to one variant. Empty
	// means all variants.
	Variant models.Variant

	// Placement filters all streams to one placement. Empty means all.
	Placement string
}

// EventSource supplies per-stream grouped counts from the event store.
// Implementations reduce each stream independently; the aggregator never
// assumes a key present in one stream exists in another. A stream with
// no data in the window returns an empty map, not an error.
type EventSource interface {
	// ImpressionCounts returns impression counts keyed per q.
	ImpressionCounts(ctx context.Context, q Query) (map[Key]int64, error)

	// ClickCounts returns click counts keyed per q.
	ClickCounts(ctx context.Context, q Query) (map[Key]int64, error)

	// ViewCounts returns view counts keyed by bucket only: views are
	// independent of the experiment and have no variant.
	ViewCounts(ctx context.Context, q Query) (map[string]int64, error)
}

// Aggregator reconciles the three event streams into metric rows.
type Aggregator struct {
	source EventSource
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source EventSource) *Aggregator {
	return &Aggregator{source: source}
}

// Aggregate reduces the window to sorted metric rows. The key set is the
// union of keys present in any stream; every stream defaults to 0 for
// keys it does not contain. Rows are sorted bucket ascending, then
// variant ascending, for deterministic presentation.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) ([]models.MetricRow, error) {
	if q.GroupBy == "" {
		q.GroupBy = GroupByDay
	}

	impressions, err := a.source.ImpressionCounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count impressions: %w", err)
	}
	clicks, err := a.source.ClickCounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	views, err := a.source.ViewCounts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}

	return reconcile(impressions, clicks, views), nil
}

// reconcile performs the in-memory full outer join across the three
// reduced maps.
func reconcile(impressions, clicks map[Key]int64, views map[string]int64) []models.MetricRow {
	keys := make(map[Key]struct{}, len(impressions)+len(clicks)+len(views))
	bucketsWithExperimentKeys := make(map[string]struct{})

	for k := range impressions {
		keys[k] = struct{}{}
		bucketsWithExperimentKeys[k.Bucket] = struct{}{}
	}
	for k := range clicks {
		keys[k] = struct{}{}
		bucketsWithExperimentKeys[k.Bucket] = struct{}{}
	}
	// A bucket seen only in the views stream still produces a row; its
	// experiment streams default to 0.
	for bucket := range views {
		if _, ok := bucketsWithExperimentKeys[bucket]; !ok {
			keys[Key{Bucket: bucket}] = struct{}{}
		}
	}

	rows := make([]models.MetricRow, 0, len(keys))
	for k := range keys {
		imp := impressions[k]
		clk := clicks[k]
		vw := views[k.Bucket]

		rows = append(rows, models.MetricRow{
			Key:         k.Bucket,
			Variant:     k.Variant,
			Impressions: imp,
			Clicks:      clk,
			Views:       vw,
			CTR:         Rate(clk, imp),
			ViewRate:    Rate(clk, vw),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Key != rows[j].Key {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Variant < rows[j].Variant
	})
	return rows
}

// Rate returns numer/denom as a percentage rounded to two decimal
// places, or 0 when denom is 0. Never NaN or Inf.
func Rate(numer, denom int64) float64 {
	if denom == 0 {
		return 0
	}
	return math.Round(float64(numer)/float64(denom)*100*100) / 100
}
