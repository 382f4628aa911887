// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package scoring computes bounded relevance scores for candidate items
// and orders candidate sets per experiment variant.
//
// Scoring never returns an error: every input is clamped or defaulted
// because ranking must never fail a page render. The engine assumes the
// weight triple it receives was validated at the settings boundary
// (experiment.NewSnapshot); it performs no validation of its own.
package scoring

import (
	"time"

	"github.com/showlytics/showlytics/internal/experiment"
	"github.com/showlytics/showlytics/internal/models"
)

const (
	// priorVoteCount is the fixed prior m in the Bayesian-shrunk rating.
	priorVoteCount = 1000.0

	// priorMeanRating is the fixed prior mean C in the shrunk rating.
	priorMeanRating = 6.8

	// ratingScale normalizes the 0-10 rating scale to [0,1].
	ratingScale = 10.0

	// recencyWindowYears is the linear decay window for the recency term.
	recencyWindowYears = 5
)

// PreferenceSource supplies the pluggable per-item preference signal
// from an external personalization feed. Implementations must return a
// value in [0,1]; out-of-range values are clamped.
type PreferenceSource interface {
	Preference(deviceID string, itemID int64) float64
}

// Engine computes the weighted relevance score for a candidate item.
// A nil PreferenceSource means the preference term contributes 0.
type Engine struct {
	prefs PreferenceSource
}

// NewEngine creates a scoring engine. prefs may be nil.
func NewEngine(prefs PreferenceSource) *Engine {
	return &Engine{prefs: prefs}
}

// Score computes the final relevance score for item under the given
// weights. Bounded in [0,1] for any valid weight triple.
func (e *Engine) Score(item models.CandidateItem, weights experiment.Weights, deviceID string, now time.Time) float64 {
	pop := PopularityTerm(item)
	recent := RecencyTerm(item, now)

	pref := 0.0
	if e.prefs != nil {
		pref = clamp01(e.prefs.Preference(deviceID, item.ID))
	}

	return weights.Pop*pop + weights.Recent*recent + weights.Pref*pref
}

// PopularityTerm is the Bayesian-shrunk rating normalized to [0,1]:
//
//	weighted_rating = (v/(v+m))*R + (m/(v+m))*C
//
// with v the vote count, R the item rating, m = priorVoteCount and
// C = priorMeanRating. Items with no votes contribute 0.
func PopularityTerm(item models.CandidateItem) float64 {
	v := float64(item.VoteCount)
	if v <= 0 {
		return 0
	}

	r := item.RatingValue()
	if r < 0 {
		r = 0
	}
	if r > ratingScale {
		r = ratingScale
	}

	weighted := (v/(v+priorVoteCount))*r + (priorVoteCount/(v+priorVoteCount))*priorMeanRating
	return clamp01(weighted / ratingScale)
}

// RecencyTerm decays linearly from 1 to 0 over recencyWindowYears:
//
//	max(0, window - (current_year - item_year)) / window
//
// Items with no release year contribute 0. Future-dated releases clamp
// to 1.
func RecencyTerm(item models.CandidateItem, now time.Time) float64 {
	if item.ReleaseYear == nil {
		return 0
	}

	age := now.UTC().Year() - *item.ReleaseYear
	if age < 0 {
		age = 0
	}

	remaining := float64(recencyWindowYears-age) / recencyWindowYears
	return clamp01(remaining)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
