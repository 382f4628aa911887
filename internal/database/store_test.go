// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import (
	"context"
	"testing"
	"time"

	"github.com/showlytics/showlytics/internal/analytics"
	"github.com/showlytics/showlytics/internal/config"
	"github.com/showlytics/showlytics/internal/models"
)

// setupTestDB creates an in-memory test database. The connection is
// closed via t.Cleanup when the test completes.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return db
}

func ts(day string, hour int) time.Time {
	t, err := time.Parse(models.DateFormat, day)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func seedEvents(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	itemID := int64(42)

	impressions := []models.ImpressionEvent{
		{Timestamp: ts("2026-08-01", 9), DeviceID: "d1", Variant: "A", Placement: "home"},
		{Timestamp: ts("2026-08-01", 10), DeviceID: "d2", Variant: "A", Placement: "home", ItemID: &itemID},
		{Timestamp: ts("2026-08-01", 11), DeviceID: "d3", Variant: "B", Placement: "trends"},
		{Timestamp: ts("2026-08-02", 9), DeviceID: "d1", Variant: "A", Placement: "show"},
	}
	for _, ev := range impressions {
		if err := db.InsertImpression(ctx, ev); err != nil {
			t.Fatalf("InsertImpression: %v", err)
		}
	}

	clicks := []models.ClickEvent{
		{Timestamp: ts("2026-08-01", 9), DeviceID: "d1", Variant: "A", Placement: "home", ItemID: 42, Source: "poster"},
		// Click on a day/placement with no impression row at all:
		// collection gaps are expected and must still be counted.
		{Timestamp: ts("2026-08-03", 12), DeviceID: "d9", Variant: "B", Placement: "search", ItemID: 7},
	}
	for _, ev := range clicks {
		if err := db.InsertClick(ctx, ev); err != nil {
			t.Fatalf("InsertClick: %v", err)
		}
	}

	views := []models.ViewEvent{
		{Timestamp: ts("2026-08-01", 9), DeviceID: "d1", ItemID: &itemID, Placement: "home"},
		{Timestamp: ts("2026-08-01", 20), DeviceID: "d5"},
		{Timestamp: ts("2026-08-04", 8), DeviceID: "d6", Placement: "home"},
	}
	for _, ev := range views {
		if err := db.InsertView(ctx, ev); err != nil {
			t.Fatalf("InsertView: %v", err)
		}
	}
}

func window(from, to string) analytics.Query {
	return analytics.Query{
		From:    ts(from, 0),
		To:      ts(to, 0),
		GroupBy: analytics.GroupByDay,
	}
}

func TestImpressionCountsByDay(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	counts, err := db.ImpressionCounts(context.Background(), window("2026-08-01", "2026-08-04"))
	if err != nil {
		t.Fatalf("ImpressionCounts: %v", err)
	}

	want := map[analytics.Key]int64{
		{Bucket: "2026-08-01"}: 3,
		{Bucket: "2026-08-02"}: 1,
	}
	assertCounts(t, counts, want)
}

func TestImpressionCountsByDayAndVariant(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	q := window("2026-08-01", "2026-08-04")
	q.ByVariant = true
	counts, err := db.ImpressionCounts(context.Background(), q)
	if err != nil {
		t.Fatalf("ImpressionCounts: %v", err)
	}

	want := map[analytics.Key]int64{
		{Bucket: "2026-08-01", Variant: "A"}: 2,
		{Bucket: "2026-08-01", Variant: "B"}: 1,
		{Bucket: "2026-08-02", Variant: "A"}: 1,
	}
	assertCounts(t, counts, want)
}

func TestCountsFilterByVariantAndPlacement(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	q := window("2026-08-01", "2026-08-04")
	q.Variant = "A"
	q.Placement = "home"
	counts, err := db.ImpressionCounts(context.Background(), q)
	if err != nil {
		t.Fatalf("ImpressionCounts: %v", err)
	}

	want := map[analytics.Key]int64{
		{Bucket: "2026-08-01"}: 2,
	}
	assertCounts(t, counts, want)
}

func TestCountsByPlacement(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	q := window("2026-08-01", "2026-08-04")
	q.GroupBy = analytics.GroupByPlacement
	counts, err := db.ImpressionCounts(context.Background(), q)
	if err != nil {
		t.Fatalf("ImpressionCounts: %v", err)
	}

	want := map[analytics.Key]int64{
		{Bucket: "home"}:   2,
		{Bucket: "show"}:   1,
		{Bucket: "trends"}: 1,
	}
	assertCounts(t, counts, want)
}

func TestCountsWindowExcludesOutsideDays(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	counts, err := db.ClickCounts(context.Background(), window("2026-08-03", "2026-08-03"))
	if err != nil {
		t.Fatalf("ClickCounts: %v", err)
	}

	want := map[analytics.Key]int64{
		{Bucket: "2026-08-03"}: 1,
	}
	assertCounts(t, counts, want)
}

func TestViewCountsIgnoreVariantFilter(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	q := window("2026-08-01", "2026-08-04")
	q.Variant = "A" // views have no variant; the filter must not apply
	counts, err := db.ViewCounts(context.Background(), q)
	if err != nil {
		t.Fatalf("ViewCounts: %v", err)
	}

	want := map[string]int64{
		"2026-08-01": 2,
		"2026-08-04": 1,
	}
	if len(counts) != len(want) {
		t.Fatalf("ViewCounts = %v, want %v", counts, want)
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("ViewCounts[%s] = %d, want %d", k, counts[k], v)
		}
	}
}

func TestEmptyWindowReturnsEmptyMaps(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	q := window("2025-01-01", "2025-01-31")
	counts, err := db.ImpressionCounts(context.Background(), q)
	if err != nil {
		t.Fatalf("ImpressionCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("counts = %v, want empty map", counts)
	}
}

// TestAggregateEndToEnd runs the real aggregator against the store,
// covering the key-union reconciliation over genuinely independent
// tables: 2026-08-03 exists only in clicks and 2026-08-04 only in views.
func TestAggregateEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	seedEvents(t, db)

	rows, err := analytics.NewAggregator(db).Aggregate(context.Background(), window("2026-08-01", "2026-08-04"))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4 (union of all stream keys): %+v", len(rows), rows)
	}

	byKey := make(map[string]models.MetricRow, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}

	if r := byKey["2026-08-01"]; r.Impressions != 3 || r.Clicks != 1 || r.Views != 2 || r.CTR != 33.33 {
		t.Errorf("2026-08-01 = %+v, want 3/1/2 with CTR 33.33", r)
	}
	if r := byKey["2026-08-02"]; r.Impressions != 1 || r.Clicks != 0 || r.CTR != 0 {
		t.Errorf("2026-08-02 = %+v, want impressions only with CTR 0", r)
	}
	if r := byKey["2026-08-03"]; r.Impressions != 0 || r.Clicks != 1 || r.CTR != 0 {
		t.Errorf("2026-08-03 = %+v, want orphan click counted with CTR 0", r)
	}
	if r := byKey["2026-08-04"]; r.Views != 1 || r.Impressions != 0 {
		t.Errorf("2026-08-04 = %+v, want views-only row", r)
	}
}

func assertCounts(t *testing.T, got, want map[analytics.Key]int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("counts = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("counts[%+v] = %d, want %d", k, got[k], v)
		}
	}
}
