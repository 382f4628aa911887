// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/showlytics/showlytics/internal/models"
)

// zEpsilon guards the standard-error denominator when the pooled
// variance collapses to 0 (no clicks at all, or CTR of exactly 100%).
const zEpsilon = 1e-9

// SignificanceThreshold is the conventional two-tailed |z| cutoff for
// ~95% confidence. Reporting convention only; ZTest always returns the
// raw statistic.
const SignificanceThreshold = 1.96

// ZTestResult holds the two observed proportions and the z statistic.
type ZTestResult struct {
	// PA and PB are the observed click-through proportions (0-1 scale).
	PA float64 `json:"p_a"`
	PB float64 `json:"p_b"`

	// Z is the two-proportion z statistic. Finite for all inputs.
	Z float64 `json:"z"`
}

// Significant reports whether |z| exceeds SignificanceThreshold.
func (r ZTestResult) Significant() bool {
	return math.Abs(r.Z) > SignificanceThreshold
}

// ZTest computes the two-proportion z statistic comparing two variants'
// click-through rates.
//
// Proportions are 0 when the variant has no impressions. Denominators
// are guarded with max(1, n) and the pooled standard error with
// zEpsilon, so the result is a defined finite number even for all-zero
// input.
func ZTest(impressionsA, clicksA, impressionsB, clicksB int64) ZTestResult {
	pA := proportion(clicksA, impressionsA)
	pB := proportion(clicksB, impressionsB)

	pooled := float64(clicksA+clicksB) / float64(max64(1, impressionsA+impressionsB))

	se := math.Sqrt(pooled * (1 - pooled) *
		(1/float64(max64(1, impressionsA)) + 1/float64(max64(1, impressionsB))))
	if se < zEpsilon {
		se = zEpsilon
	}

	return ZTestResult{
		PA: pA,
		PB: pB,
		Z:  (pA - pB) / se,
	}
}

func proportion(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// VariantTotals is one variant's accumulated counts over a window.
type VariantTotals struct {
	Variant     models.Variant `json:"variant"`
	Impressions int64          `json:"impressions"`
	Clicks      int64          `json:"clicks"`
	CTR         float64        `json:"ctr"`
}

// Comparison is the variant comparison report consumed by dashboards.
type Comparison struct {
	A           VariantTotals `json:"a"`
	B           VariantTotals `json:"b"`
	ZTest       ZTestResult   `json:"z_test"`
	Significant bool          `json:"significant"`
}

// CompareVariants aggregates the window per day and variant, totals the
// two requested variants and runs the z-test on their CTRs.
func (a *Aggregator) CompareVariants(ctx context.Context, q Query, variantA, variantB models.Variant) (Comparison, error) {
	q.ByVariant = true
	q.Variant = ""

	rows, err := a.Aggregate(ctx, q)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to aggregate for comparison: %w", err)
	}

	totals := map[models.Variant]*VariantTotals{
		variantA: {Variant: variantA},
		variantB: {Variant: variantB},
	}
	for _, row := range rows {
		t, ok := totals[row.Variant]
		if !ok {
			continue
		}
		t.Impressions += row.Impressions
		t.Clicks += row.Clicks
	}

	for _, t := range totals {
		t.CTR = Rate(t.Clicks, t.Impressions)
	}

	result := ZTest(totals[variantA].Impressions, totals[variantA].Clicks,
		totals[variantB].Impressions, totals[variantB].Clicks)

	return Comparison{
		A:           *totals[variantA],
		B:           *totals[variantB],
		ZTest:       result,
		Significant: result.Significant(),
	}, nil
}
