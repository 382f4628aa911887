// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package experiment

import (
	"hash/crc32"

	"github.com/showlytics/showlytics/internal/models"
)

// Assigner maps a stable device identifier to exactly one experiment
// variant. Assignment is a pure function of the device id and the
// configured splits: no state is persisted and repeated calls always
// return the same variant.
//
// Bucketing algorithm, pinned so test vectors stay portable across
// environments and replay tooling:
//
//   - Checksum: IEEE CRC-32 (hash/crc32, IEEE polynomial) over the raw
//     UTF-8 bytes of the device id. The empty string is hashed as-is
//     (CRC32("") == 0), never treated as an error.
//   - Two variants with equal splits: checksum parity selects the
//     variant. Even buckets to the first variant in name order ("A"),
//     odd to the second ("B").
//   - Otherwise: checksum mod 100 is mapped into cumulative-split
//     buckets ordered by variant name ascending, with splits normalized
//     to their positive total.
type Assigner struct {
	snapshot Snapshot
	names    []models.Variant

	// thresholds[i] is the exclusive upper bucket bound for names[i] on
	// the normalized 0-100 scale.
	thresholds []float64

	parity bool
}

// NewAssigner builds an Assigner from a validated snapshot.
func NewAssigner(snapshot Snapshot) *Assigner {
	a := &Assigner{
		snapshot: snapshot,
		names:    snapshot.sortedNames(),
	}

	if len(a.names) == 2 {
		first := snapshot.Variants[a.names[0]].Split
		second := snapshot.Variants[a.names[1]].Split
		if first == second {
			a.parity = true
			return a
		}
	}

	total := 0.0
	for _, name := range a.names {
		total += snapshot.Variants[name].Split
	}

	a.thresholds = make([]float64, len(a.names))
	cumulative := 0.0
	for i, name := range a.names {
		cumulative += snapshot.Variants[name].Split
		a.thresholds[i] = cumulative / total * 100
	}
	return a
}

// Assign returns the variant for the given device id. Total over all
// inputs, including the empty string.
func (a *Assigner) Assign(deviceID string) models.Variant {
	if len(a.names) == 0 {
		return models.VariantA
	}
	if len(a.names) == 1 {
		return a.names[0]
	}

	sum := crc32.ChecksumIEEE([]byte(deviceID))

	if a.parity {
		if sum%2 == 0 {
			return a.names[0]
		}
		return a.names[1]
	}

	bucket := float64(sum % 100)
	for i, threshold := range a.thresholds {
		if bucket < threshold {
			return a.names[i]
		}
	}
	// Floating point cumulative sums can leave the last threshold a hair
	// under 100; the final variant owns the remainder.
	return a.names[len(a.names)-1]
}
