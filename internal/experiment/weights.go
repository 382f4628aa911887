// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/showlytics/showlytics/internal/models"
)

// WeightSumTolerance is the allowed deviation of a variant's weight
// triple from 1.0 before the configuration is rejected.
const WeightSumTolerance = 0.01

// Weights is the per-variant scoring weight triple. Each component is
// non-negative and the three must sum to 1.0 within WeightSumTolerance.
type Weights struct {
	// Pop weights the Bayesian-shrunk popularity term.
	Pop float64 `json:"pop" koanf:"pop"`

	// Recent weights the release-recency term.
	Recent float64 `json:"recent" koanf:"recent"`

	// Pref weights the pluggable preference term.
	Pref float64 `json:"pref" koanf:"pref"`
}

// Sum returns the total of the three components.
func (w Weights) Sum() float64 {
	return w.Pop + w.Recent + w.Pref
}

// Validate checks non-negativity and the sum-to-one constraint.
func (w Weights) Validate() error {
	if w.Pop < 0 || w.Recent < 0 || w.Pref < 0 {
		return fmt.Errorf("weights must be non-negative, got pop=%v recent=%v pref=%v",
			w.Pop, w.Recent, w.Pref)
	}
	if math.Abs(w.Sum()-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0 within %v, got %v",
			WeightSumTolerance, w.Sum())
	}
	return nil
}

// VariantConfig pairs a variant's scoring weights with its share of
// experiment traffic. Split is a percentage-style share; splits across
// variants need not sum to exactly 100, only to a positive total.
type VariantConfig struct {
	Weights Weights `json:"weights" koanf:"weights"`
	Split   float64 `json:"split" koanf:"split"`
}

// Snapshot is a validated, immutable view of the experiment
// configuration. The engine receives a Snapshot by explicit injection on
// every call; it never reads ambient global state, so concurrent
// requests may safely carry different snapshots mid-rollout.
type Snapshot struct {
	Variants map[models.Variant]VariantConfig
}

// NewSnapshot validates the variant map and returns it as an immutable
// Snapshot. Invalid weight sums or splits never reach the scoring
// engine; they are rejected here at configuration time.
func NewSnapshot(variants map[models.Variant]VariantConfig) (Snapshot, error) {
	if len(variants) == 0 {
		return Snapshot{}, fmt.Errorf("experiment requires at least one variant")
	}

	splitTotal := 0.0
	for name, vc := range variants {
		if err := vc.Weights.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("variant %s: %w", name, err)
		}
		if vc.Split < 0 {
			return Snapshot{}, fmt.Errorf("variant %s: split must be non-negative, got %v", name, vc.Split)
		}
		splitTotal += vc.Split
	}
	if splitTotal <= 0 {
		return Snapshot{}, fmt.Errorf("traffic splits must sum to a positive total, got %v", splitTotal)
	}

	copied := make(map[models.Variant]VariantConfig, len(variants))
	for name, vc := range variants {
		copied[name] = vc
	}
	return Snapshot{Variants: copied}, nil
}

// WeightsFor returns the scoring weights for the given variant. Unknown
// variants fall back to the first variant in name order so that ranking
// never fails a request.
func (s Snapshot) WeightsFor(variant models.Variant) Weights {
	if vc, ok := s.Variants[variant]; ok {
		return vc.Weights
	}
	names := s.sortedNames()
	if len(names) == 0 {
		return Weights{}
	}
	return s.Variants[names[0]].Weights
}

// sortedNames returns the variant names in ascending order. Bucket
// boundaries depend on this ordering, so it must be stable.
func (s Snapshot) sortedNames() []models.Variant {
	names := make([]models.Variant, 0, len(s.Variants))
	for name := range s.Variants {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
