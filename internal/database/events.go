// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/showlytics/showlytics/internal/metrics"
	"github.com/showlytics/showlytics/internal/models"
)

// InsertImpression records one ranked-list render.
func (db *DB) InsertImpression(ctx context.Context, ev models.ImpressionEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO impressions (ts, device_id, variant, placement, item_id) VALUES (?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC(), ev.DeviceID, string(ev.Variant), ev.Placement, ev.ItemID)
	metrics.ObserveQuery("insert", "impressions", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert impression: %w", err)
	}
	return nil
}

// InsertClick records one click-through on a shown item.
func (db *DB) InsertClick(ctx context.Context, ev models.ClickEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO clicks (ts, device_id, variant, placement, item_id, source) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC(), ev.DeviceID, string(ev.Variant), ev.Placement, ev.ItemID, nullableString(ev.Source))
	metrics.ObserveQuery("insert", "clicks", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}
	return nil
}

// InsertView records one page view, independent of the experiment.
func (db *DB) InsertView(ctx context.Context, ev models.ViewEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO views (ts, device_id, item_id, placement) VALUES (?, ?, ?, ?)`,
		ev.Timestamp.UTC(), ev.DeviceID, ev.ItemID, nullableString(ev.Placement))
	metrics.ObserveQuery("insert", "views", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert view: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL so optional columns stay NULL rather
// than empty strings.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
