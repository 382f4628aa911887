// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import (
	"context"
	"testing"

	"github.com/showlytics/showlytics/internal/models"
)

func TestUpsertDayReplacesExistingRow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := models.DailySnapshot{
		Date: "2026-08-01", Variant: "A",
		Impressions: 100, Clicks: 10, Views: 5,
		CTR: 10.00, ViewRate: 5.00,
	}
	if err := db.UpsertDay(ctx, first); err != nil {
		t.Fatalf("first UpsertDay: %v", err)
	}

	// Re-aggregation of the same day must replace, not duplicate.
	second := first
	second.Impressions = 120
	second.Clicks = 12
	second.CTR = 10.00
	if err := db.UpsertDay(ctx, second); err != nil {
		t.Fatalf("second UpsertDay: %v", err)
	}

	snaps, err := db.GetSnapshots(ctx, "2026-08-01", "2026-08-01")
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d rows for one day/variant, want 1: %+v", len(snaps), snaps)
	}
	if snaps[0].Impressions != 120 || snaps[0].Clicks != 12 {
		t.Errorf("snapshot = %+v, want replaced values 120/12", snaps[0])
	}
}

func TestUpsertDayKeepsOtherVariants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := models.DailySnapshot{Date: "2026-08-01", Variant: "A", Impressions: 50, Clicks: 5, CTR: 10.00}
	b := models.DailySnapshot{Date: "2026-08-01", Variant: "B", Impressions: 40, Clicks: 2, CTR: 5.00}
	for _, s := range []models.DailySnapshot{a, b} {
		if err := db.UpsertDay(ctx, s); err != nil {
			t.Fatalf("UpsertDay(%s): %v", s.Variant, err)
		}
	}

	a.Impressions = 55
	if err := db.UpsertDay(ctx, a); err != nil {
		t.Fatalf("re-UpsertDay(A): %v", err)
	}

	snaps, err := db.GetSnapshots(ctx, "2026-08-01", "2026-08-01")
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(snaps), snaps)
	}
	if snaps[0].Variant != "A" || snaps[0].Impressions != 55 {
		t.Errorf("row 0 = %+v, want updated variant A", snaps[0])
	}
	if snaps[1].Variant != "B" || snaps[1].Impressions != 40 {
		t.Errorf("row 1 = %+v, want untouched variant B", snaps[1])
	}
}

func TestGetSnapshotsRangeAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []models.DailySnapshot{
		{Date: "2026-08-03", Variant: "B", Impressions: 1},
		{Date: "2026-08-01", Variant: "B", Impressions: 2},
		{Date: "2026-08-02", Variant: "A", Impressions: 3},
		{Date: "2026-08-01", Variant: "A", Impressions: 4},
		{Date: "2026-08-05", Variant: "A", Impressions: 5},
	}
	for _, s := range rows {
		if err := db.UpsertDay(ctx, s); err != nil {
			t.Fatalf("UpsertDay: %v", err)
		}
	}

	snaps, err := db.GetSnapshots(ctx, "2026-08-01", "2026-08-03")
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}

	wantOrder := []string{"2026-08-01/A", "2026-08-01/B", "2026-08-02/A", "2026-08-03/B"}
	if len(snaps) != len(wantOrder) {
		t.Fatalf("got %d rows, want %d: %+v", len(snaps), len(wantOrder), snaps)
	}
	for i, want := range wantOrder {
		got := snaps[i].Date + "/" + string(snaps[i].Variant)
		if got != want {
			t.Errorf("row %d = %s, want %s", i, got, want)
		}
	}
}

func TestGetSnapshotsEmptyRange(t *testing.T) {
	db := setupTestDB(t)

	snaps, err := db.GetSnapshots(context.Background(), "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("GetSnapshots: %v", err)
	}
	if snaps == nil {
		t.Fatal("GetSnapshots returned nil, want empty slice")
	}
	if len(snaps) != 0 {
		t.Errorf("got %d rows, want 0", len(snaps))
	}
}
