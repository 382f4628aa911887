// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package analytics

import (
	"context"
	"math"
	"testing"

	"github.com/showlytics/showlytics/internal/models"
)

func TestZTestAllZero(t *testing.T) {
	result := ZTest(0, 0, 0, 0)

	if math.IsNaN(result.Z) || math.IsInf(result.Z, 0) {
		t.Fatalf("ZTest(0,0,0,0).Z = %v, want finite", result.Z)
	}
	if result.Z != 0 {
		t.Errorf("ZTest(0,0,0,0).Z = %v, want 0", result.Z)
	}
	if result.PA != 0 || result.PB != 0 {
		t.Errorf("proportions = %v, %v, want 0, 0", result.PA, result.PB)
	}
}

func TestZTestOneSideZeroImpressions(t *testing.T) {
	result := ZTest(1000, 200, 0, 0)

	if math.IsNaN(result.Z) || math.IsInf(result.Z, 0) {
		t.Fatalf("Z = %v, want finite", result.Z)
	}
	if result.PA != 0.2 {
		t.Errorf("PA = %v, want 0.2", result.PA)
	}
	if result.PB != 0 {
		t.Errorf("PB = %v, want 0", result.PB)
	}
	if result.Z <= 0 {
		t.Errorf("Z = %v, want positive when only A has clicks", result.Z)
	}
}

func TestZTestIdenticalRates(t *testing.T) {
	result := ZTest(100, 50, 100, 50)

	if math.Abs(result.Z) > 1e-12 {
		t.Errorf("Z = %v, want 0 for identical CTRs", result.Z)
	}
	if result.Significant() {
		t.Error("identical CTRs must not be significant")
	}
}

func TestZTestClearWinner(t *testing.T) {
	result := ZTest(1000, 500, 1000, 100)

	if result.PA != 0.5 || result.PB != 0.1 {
		t.Errorf("proportions = %v, %v, want 0.5, 0.1", result.PA, result.PB)
	}
	if math.Abs(result.Z) <= SignificanceThreshold {
		t.Errorf("|Z| = %v, want > %v", math.Abs(result.Z), SignificanceThreshold)
	}
	if !result.Significant() {
		t.Error("expected a significant result")
	}

	// Pinned value: p = 0.3, se = sqrt(0.3*0.7*(1/1000+1/1000)),
	// z = 0.4/se = 19.518...
	if math.Abs(result.Z-19.518001458970662) > 1e-9 {
		t.Errorf("Z = %.15f, want 19.518001458970662", result.Z)
	}
}

func TestZTestSymmetry(t *testing.T) {
	ab := ZTest(1000, 300, 1000, 200)
	ba := ZTest(1000, 200, 1000, 300)

	if math.Abs(ab.Z+ba.Z) > 1e-12 {
		t.Errorf("swapping variants should negate z: %v vs %v", ab.Z, ba.Z)
	}
}

func TestZTestTinySamples(t *testing.T) {
	tests := []struct {
		name       string
		impA, clkA int64
		impB, clkB int64
	}{
		{"one impression each", 1, 1, 1, 0},
		{"single click no impressions", 0, 0, 1, 1},
		{"all clicked both sides", 10, 10, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ZTest(tt.impA, tt.clkA, tt.impB, tt.clkB)
			if math.IsNaN(result.Z) || math.IsInf(result.Z, 0) {
				t.Errorf("Z = %v, want finite", result.Z)
			}
		})
	}
}

func TestCompareVariants(t *testing.T) {
	source := &fakeSource{
		impressions: map[Key]int64{
			{Bucket: "2026-08-01", Variant: "A"}: 600,
			{Bucket: "2026-08-02", Variant: "A"}: 400,
			{Bucket: "2026-08-01", Variant: "B"}: 500,
			{Bucket: "2026-08-02", Variant: "B"}: 500,
		},
		clicks: map[Key]int64{
			{Bucket: "2026-08-01", Variant: "A"}: 300,
			{Bucket: "2026-08-02", Variant: "A"}: 200,
			{Bucket: "2026-08-01", Variant: "B"}: 60,
			{Bucket: "2026-08-02", Variant: "B"}: 40,
		},
		views: map[string]int64{},
	}

	cmp, err := NewAggregator(source).CompareVariants(context.Background(), testWindow(), models.VariantA, models.VariantB)
	if err != nil {
		t.Fatalf("CompareVariants: %v", err)
	}

	if cmp.A.Impressions != 1000 || cmp.A.Clicks != 500 {
		t.Errorf("A totals = %+v, want 1000 impressions / 500 clicks", cmp.A)
	}
	if cmp.B.Impressions != 1000 || cmp.B.Clicks != 100 {
		t.Errorf("B totals = %+v, want 1000 impressions / 100 clicks", cmp.B)
	}
	if cmp.A.CTR != 50.00 || cmp.B.CTR != 10.00 {
		t.Errorf("CTRs = %v / %v, want 50.00 / 10.00", cmp.A.CTR, cmp.B.CTR)
	}
	if !cmp.Significant {
		t.Error("expected a significant comparison")
	}
}
