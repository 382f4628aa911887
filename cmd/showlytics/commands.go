// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/showlytics/showlytics/internal/analytics"
	"github.com/showlytics/showlytics/internal/config"
	"github.com/showlytics/showlytics/internal/database"
	"github.com/showlytics/showlytics/internal/logging"
	"github.com/showlytics/showlytics/internal/models"
	"github.com/showlytics/showlytics/internal/scoring"
	"github.com/showlytics/showlytics/internal/snapshot"
)

// rangeFlags holds the --from/--to pair shared by the analytics
// subcommands.
type rangeFlags struct {
	from string
	to   string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "Start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&r.to, "to", "", "End date (YYYY-MM-DD, inclusive)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func (r *rangeFlags) parse() (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(models.DateFormat, r.from, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q: %w", r.from, err)
	}
	to, err := time.ParseInLocation(models.DateFormat, r.to, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q: %w", r.to, err)
	}
	return from, to, nil
}

// openDB loads configuration and opens the event store. Callers must
// close the returned DB.
func openDB() (*config.Config, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// writeJSON renders v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func buildAggregateCmd() *cobra.Command {
	var dates rangeFlags

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Roll up a date range into daily per-variant snapshots",
		Long: `Aggregate reconciles the raw impression, click and view streams for
each day in the range and persists one snapshot row per (date, variant).
Re-running a range replaces the affected rows, so partial days can be
safely re-aggregated once complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := dates.parse()
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			runner := snapshot.NewRunner(db, db)
			return runner.AggregateRange(cmd.Context(), from, to)
		},
	}
	dates.register(cmd)
	return cmd
}

func buildReportCmd() *cobra.Command {
	var (
		dates     rangeFlags
		groupBy   string
		byVariant bool
		variant   string
		placement string
		stored    bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print reconciled CTR and view-rate metrics as JSON",
		Long: `Report computes metrics live from the raw event streams, grouped by
day or placement. With --snapshots it reads the persisted daily rollups
instead, which is cheaper for long ranges that have been aggregated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := dates.parse()
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if stored {
				snaps, err := db.GetSnapshots(cmd.Context(), dates.from, dates.to)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), snaps)
			}

			rows, err := analytics.NewAggregator(db).Aggregate(cmd.Context(), analytics.Query{
				From:      from,
				To:        to,
				GroupBy:   analytics.GroupBy(groupBy),
				ByVariant: byVariant,
				Variant:   models.Variant(variant),
				Placement: placement,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rows)
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVar(&groupBy, "group-by", "day", "Grouping bucket: day or placement")
	cmd.Flags().BoolVar(&byVariant, "by-variant", false, "Split each bucket per variant")
	cmd.Flags().StringVar(&variant, "variant", "", "Restrict to one variant")
	cmd.Flags().StringVar(&placement, "placement", "", "Restrict to one placement")
	cmd.Flags().BoolVar(&stored, "snapshots", false, "Read persisted daily snapshots instead of raw events")
	return cmd
}

func buildZTestCmd() *cobra.Command {
	var (
		dates    rangeFlags
		variantA string
		variantB string
	)

	cmd := &cobra.Command{
		Use:   "ztest",
		Short: "Compare two variants with a two-proportion z-test",
		Long: `Ztest sums impressions and clicks per variant over the range and
runs a pooled two-proportion z-test on the click-through rates. A |z|
above 1.96 is conventionally significant at the 95% level; the reading
is advisory, not a gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := dates.parse()
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			cmp, err := analytics.NewAggregator(db).CompareVariants(cmd.Context(),
				analytics.Query{From: from, To: to, GroupBy: analytics.GroupByDay},
				models.Variant(variantA), models.Variant(variantB))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cmp)
		},
	}
	dates.register(cmd)
	cmd.Flags().StringVar(&variantA, "variant-a", string(models.VariantA), "First variant")
	cmd.Flags().StringVar(&variantB, "variant-b", string(models.VariantB), "Second variant")
	return cmd
}

// recommendOutput is the JSON shape printed by the recommend command.
type recommendOutput struct {
	DeviceID string                 `json:"device_id"`
	Variant  models.Variant         `json:"variant"`
	Items    []models.CandidateItem `json:"items"`
}

func buildRecommendCmd() *cobra.Command {
	var (
		deviceID   string
		candidates string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Assign a device to a variant and rank a candidate file",
		Long: `Recommend deterministically assigns the device to an experiment
variant, scores the candidate items under that variant's weights and
prints the ranked list as JSON. The same device always lands in the
same variant for a given split configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			snap, err := cfg.ExperimentSnapshot()
			if err != nil {
				return err
			}

			items, err := readCandidates(candidates)
			if err != nil {
				return err
			}

			recommender := scoring.NewRecommender(snap, nil)
			variant, ranked := recommender.Recommend(deviceID, items, limit, time.Now())

			logging.Info().
				Str("device_id", deviceID).
				Str("variant", string(variant)).
				Int("candidates", len(items)).
				Int("returned", len(ranked)).
				Msg("Ranked candidates")

			return writeJSON(cmd.OutOrStdout(), recommendOutput{
				DeviceID: deviceID,
				Variant:  variant,
				Items:    ranked,
			})
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "Device identifier to assign")
	cmd.Flags().StringVar(&candidates, "candidates", "", "Path to a JSON array of candidate items")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to return (0 = all)")
	_ = cmd.MarkFlagRequired("device")
	_ = cmd.MarkFlagRequired("candidates")
	return cmd
}

// readCandidates loads a JSON array of candidate items from path.
func readCandidates(path string) ([]models.CandidateItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}
	var items []models.CandidateItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file %s: %w", path, err)
	}
	return items, nil
}

func buildScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily snapshot scheduler daemon",
		Long: `Schedule runs until interrupted, aggregating the previous UTC day
into snapshots on the configured cron schedule. The scheduler runs
under a supervisor and is restarted on failure; an invalid schedule
terminates the daemon instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sup := suture.New("showlytics", suture.Spec{
				EventHook: snapshot.EventHook(),
			})
			sup.Add(snapshot.NewScheduler(snapshot.NewRunner(db, db), cfg.Snapshot.Schedule))

			logging.Info().Str("schedule", cfg.Snapshot.Schedule).Msg("Starting snapshot scheduler")
			if err := sup.Serve(ctx); err != nil && !errorIsCanceled(err) {
				return err
			}
			logging.Info().Msg("Scheduler stopped")
			return nil
		},
	}
	return cmd
}

func errorIsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database")
	}
}
