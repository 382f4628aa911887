// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package scoring

import (
	"sort"
	"time"

	"github.com/showlytics/showlytics/internal/experiment"
	"github.com/showlytics/showlytics/internal/metrics"
	"github.com/showlytics/showlytics/internal/models"
)

// Ranker orders a candidate set by relevance score for one variant's
// weights. Ordering is fully deterministic: score descending, then vote
// count descending, then rating descending, then original input order.
// The original-order fallback guarantees identical output for identical
// input, which testing and response caching rely on.
type Ranker struct {
	engine *Engine
}

// NewRanker creates a Ranker backed by the given engine.
func NewRanker(engine *Engine) *Ranker {
	return &Ranker{engine: engine}
}

// Rank returns the candidates ordered by score, truncated to limit.
// An empty candidate set returns an empty slice; callers fall back to a
// non-personalized popularity list in that case. limit <= 0 means no
// truncation.
func (r *Ranker) Rank(candidates []models.CandidateItem, weights experiment.Weights, deviceID string, limit int, now time.Time) []models.CandidateItem {
	if len(candidates) == 0 {
		return []models.CandidateItem{}
	}

	type scored struct {
		item  models.CandidateItem
		score float64
		index int
	}

	rows := make([]scored, len(candidates))
	for i, item := range candidates {
		rows[i] = scored{
			item:  item,
			score: r.engine.Score(item, weights, deviceID, now),
			index: i,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		if rows[i].item.VoteCount != rows[j].item.VoteCount {
			return rows[i].item.VoteCount > rows[j].item.VoteCount
		}
		ri, rj := rows[i].item.RatingValue(), rows[j].item.RatingValue()
		if ri != rj {
			return ri > rj
		}
		return rows[i].index < rows[j].index
	})

	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	result := make([]models.CandidateItem, len(rows))
	for i, row := range rows {
		result[i] = row.item
	}
	return result
}

// Recommender ties the per-request pipeline together: device id to
// variant, variant to weights, weights to a ranked list. The caller is
// responsible for logging the resulting impression event.
type Recommender struct {
	assigner *experiment.Assigner
	snapshot experiment.Snapshot
	ranker   *Ranker
}

// NewRecommender builds the request-scoped recommendation pipeline from
// a validated experiment snapshot.
func NewRecommender(snapshot experiment.Snapshot, prefs PreferenceSource) *Recommender {
	return &Recommender{
		assigner: experiment.NewAssigner(snapshot),
		snapshot: snapshot,
		ranker:   NewRanker(NewEngine(prefs)),
	}
}

// Recommend assigns the device to a variant and returns the variant with
// the ranked candidate list.
func (r *Recommender) Recommend(deviceID string, candidates []models.CandidateItem, limit int, now time.Time) (models.Variant, []models.CandidateItem) {
	variant := r.assigner.Assign(deviceID)
	metrics.VariantAssignments.WithLabelValues(string(variant)).Inc()
	weights := r.snapshot.WeightsFor(variant)
	return variant, r.ranker.Rank(candidates, weights, deviceID, limit, now)
}
