// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/showlytics/showlytics/internal/logging"
	"github.com/showlytics/showlytics/internal/metrics"
	"github.com/showlytics/showlytics/internal/models"
)

// UpsertDay replaces the snapshot row for (date, variant) with freshly
// computed values. Delete-and-insert inside one transaction, never an
// incremental counter update: running aggregation twice for the same day
// converges to identical stored state.
func (db *DB) UpsertDay(ctx context.Context, snap models.DailySnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.upsertDayTx(ctx, snap)
	metrics.ObserveQuery("upsert", "daily_snapshots", start, err)
	if err != nil {
		return err
	}

	logging.Debug().
		Str("date", snap.Date).
		Str("variant", string(snap.Variant)).
		Int64("impressions", snap.Impressions).
		Int64("clicks", snap.Clicks).
		Msg("snapshot upserted")
	return nil
}

func (db *DB) upsertDayTx(ctx context.Context, snap models.DailySnapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		// Rollback is a no-op after a successful commit.
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM daily_snapshots WHERE date = ? AND variant = ?`,
		snap.Date, string(snap.Variant)); err != nil {
		return fmt.Errorf("failed to clear snapshot %s/%s: %w", snap.Date, snap.Variant, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_snapshots (date, variant, impressions, clicks, views, ctr, view_rate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Date, string(snap.Variant), snap.Impressions, snap.Clicks, snap.Views,
		snap.CTR, snap.ViewRate, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert snapshot %s/%s: %w", snap.Date, snap.Variant, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot %s/%s: %w", snap.Date, snap.Variant, err)
	}
	return nil
}

// GetSnapshots returns the persisted snapshots for the inclusive date
// range, ordered by date then variant. An empty range returns an empty
// slice.
func (db *DB) GetSnapshots(ctx context.Context, fromDate, toDate string) ([]models.DailySnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, variant, impressions, clicks, views, ctr, view_rate
		 FROM daily_snapshots
		 WHERE date >= ? AND date <= ?
		 ORDER BY date, variant`,
		fromDate, toDate)
	metrics.ObserveQuery("select", "daily_snapshots", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer closeQuietly(rows)

	snapshots := []models.DailySnapshot{}
	for rows.Next() {
		var s models.DailySnapshot
		var variant string
		if err := rows.Scan(&s.Date, &variant, &s.Impressions, &s.Clicks, &s.Views, &s.CTR, &s.ViewRate); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Variant = models.Variant(variant)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot iteration failed: %w", err)
	}
	return snapshots, nil
}
