// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package models defines the shared data types flowing between the
// experiment engine, the event store and the analytics pipeline.
package models

import "time"

// Variant identifies one arm of an A/B experiment (e.g. "A" or "B").
type Variant string

// Standard variants used by the two-arm experiment.
const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// CandidateItem is an immutable scoring input supplied by the catalog.
//
// Rating is on a 0-10 scale; a nil Rating means the item has no rating
// yet. A nil ReleaseYear means the release date is unknown. Both are
// treated as zero-contribution signals by the scoring engine, never as
// errors.
type CandidateItem struct {
	// ID is the catalog identifier of the item.
	ID int64 `json:"id"`

	// Title is the display title, carried through for consumers.
	Title string `json:"title"`

	// Rating is the average rating on a 0-10 scale, if any.
	Rating *float64 `json:"rating,omitempty"`

	// VoteCount is the number of ratings backing Rating. Never negative.
	VoteCount int64 `json:"vote_count"`

	// ReleaseYear is the four-digit release year, if known.
	ReleaseYear *int `json:"release_year,omitempty"`
}

// RatingValue returns the rating or 0 when absent.
func (c CandidateItem) RatingValue() float64 {
	if c.Rating == nil {
		return 0
	}
	return *c.Rating
}

// ImpressionEvent records that a ranked list was rendered to a device
// under a given variant and placement. Produced once per render.
type ImpressionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Variant   Variant   `json:"variant"`
	Placement string    `json:"placement"`
	ItemID    *int64    `json:"item_id,omitempty"`
}

// ClickEvent records that a shown item was selected. Produced once per
// user click-through.
type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Variant   Variant   `json:"variant"`
	Placement string    `json:"placement"`
	ItemID    int64     `json:"item_id"`
	Source    string    `json:"source,omitempty"`
}

// ViewEvent records a page view, independent of the experiment. Used as
// a funnel denominator.
type ViewEvent struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	ItemID    *int64    `json:"item_id,omitempty"`
	Placement string    `json:"placement,omitempty"`
}

// MetricRow is one reconciled aggregation result. Key is either a day in
// YYYY-MM-DD form or a placement name, optionally suffixed per-variant by
// the caller's grouping. CTR and ViewRate are percentages rounded to two
// decimal places, 0 when the denominator is 0.
type MetricRow struct {
	Key         string  `json:"key"`
	Variant     Variant `json:"variant,omitempty"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Views       int64   `json:"views"`
	CTR         float64 `json:"ctr"`
	ViewRate    float64 `json:"view_rate"`
}

// DailySnapshot is a persisted pre-aggregated metrics row, one per
// (date, variant). A re-run for a date fully replaces that date's rows.
type DailySnapshot struct {
	// Date is the snapshot day in YYYY-MM-DD form.
	Date string `json:"date"`

	Variant     Variant `json:"variant"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Views       int64   `json:"views"`

	// CTR is clicks/impressions as a percentage, 0 when impressions = 0.
	CTR float64 `json:"ctr"`

	// ViewRate is clicks/views as a percentage, 0 when views = 0.
	ViewRate float64 `json:"view_rate"`
}

// DateFormat is the canonical day key layout used across the pipeline.
const DateFormat = "2006-01-02"

// Day formats t as a canonical day key in UTC.
func Day(t time.Time) string {
	return t.UTC().Format(DateFormat)
}
