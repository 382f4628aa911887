// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package analytics reduces raw impression, click and view events into
// per-key metric rows and compares variant click-through rates.
//
// The three event streams are populated independently and share no
// referential integrity: a click may be recorded for a day and placement
// that has no matching impression row at all. Reconciliation is
// therefore a full outer join emulated in memory: each stream is
// reduced to its own key-count map, the union of all keys is taken, and
// absent streams default to zero for a key. Anchoring on any single
// "primary" stream would silently drop rows, so the union is genuine.
//
// All rates are percentages rounded to two decimal places and defined as
// 0 when their denominator is 0. An empty window yields an empty result,
// never an error.
package analytics
