// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package database

import "fmt"

// schemaStatements creates the event and snapshot tables. The three
// event tables are intentionally independent: no foreign keys, no
// shared join key guarantee. A click row may exist for a (day, variant,
// placement) that has no impression row at all.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS impressions (
		ts        TIMESTAMP NOT NULL,
		device_id VARCHAR NOT NULL,
		variant   VARCHAR NOT NULL,
		placement VARCHAR NOT NULL,
		item_id   BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		ts        TIMESTAMP NOT NULL,
		device_id VARCHAR NOT NULL,
		variant   VARCHAR NOT NULL,
		placement VARCHAR NOT NULL,
		item_id   BIGINT NOT NULL,
		source    VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS views (
		ts        TIMESTAMP NOT NULL,
		device_id VARCHAR NOT NULL,
		item_id   BIGINT,
		placement VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS daily_snapshots (
		date        VARCHAR NOT NULL,
		variant     VARCHAR NOT NULL,
		impressions BIGINT NOT NULL,
		clicks      BIGINT NOT NULL,
		views       BIGINT NOT NULL,
		ctr         DOUBLE NOT NULL,
		view_rate   DOUBLE NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		PRIMARY KEY (date, variant)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_impressions_ts ON impressions (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_ts ON clicks (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_views_ts ON views (ts)`,
}

// initSchema creates all tables and indexes if they do not exist.
func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
