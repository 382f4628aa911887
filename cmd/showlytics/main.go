// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

// Package main is the entry point for the Showlytics command line tool.
//
// Showlytics runs deterministic A/B recommendation experiments over a
// movie catalog and measures their outcomes: impression, click and view
// events land in DuckDB, get reconciled into CTR and view-rate metrics,
// and are rolled up into daily per-variant snapshots.
//
// # Basic Usage
//
// Aggregate a date range into daily snapshots:
//
//	showlytics aggregate --from 2026-08-01 --to 2026-08-07
//
// Report reconciled metrics as JSON:
//
//	showlytics report --from 2026-08-01 --to 2026-08-07 --by-variant
//
// Compare two variants with a two-proportion z-test:
//
//	showlytics ztest --from 2026-08-01 --to 2026-08-07
//
// Rank a candidate file for a device:
//
//	showlytics recommend --device tv-0042 --candidates movies.json --limit 10
//
// Run the snapshot scheduler daemon:
//
//	showlytics schedule
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SHOWLYTICS_*)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/showlytics/showlytics/internal/config"
	"github.com/showlytics/showlytics/internal/logging"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "showlytics",
		Short: "Showlytics - movie recommendation experiments and CTR analytics",
		Long: `Showlytics runs deterministic A/B recommendation experiments and
measures their outcomes from impression, click and view event streams.

Documentation: https://github.com/showlytics/showlytics`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		buildAggregateCmd(),
		buildReportCmd(),
		buildZTestCmd(),
		buildRecommendCmd(),
		buildScheduleCmd(),
	)
	return rootCmd
}

// loadConfig loads the layered configuration and initializes the global
// logger from it. Every subcommand starts here.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}
