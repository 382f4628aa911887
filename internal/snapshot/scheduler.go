// Showlytics - Movie Recommendation Experiments and CTR Analytics
// Copyright 2026 Showlytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/showlytics/showlytics

package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/thejerf/suture/v4"

	"github.com/showlytics/showlytics/internal/logging"
)

// Scheduler runs AggregateRange for the previous UTC day on a cron
// schedule. It implements suture.Service so daemon mode can supervise
// it; the primary deployment path remains an external cron invoking the
// aggregate command directly.
type Scheduler struct {
	runner   *Runner
	schedule string

	// now is injectable for tests.
	now func() time.Time
}

// NewScheduler creates a Scheduler with a standard 5-field cron
// expression (e.g. "10 0 * * *").
func NewScheduler(runner *Runner, schedule string) *Scheduler {
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		now:      time.Now,
	}
}

// Serve implements suture.Service. It blocks until ctx is cancelled.
// An unparsable schedule terminates the service without restart: a bad
// schedule never becomes valid by retrying.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w: %w",
			s.schedule, err, suture.ErrDoNotRestart)
	}

	logging.Info().Str("schedule", s.schedule).Msg("snapshot scheduler started")
	c.Start()

	<-ctx.Done()

	// Wait for any in-flight job before reporting shutdown.
	<-c.Stop().Done()
	logging.Info().Msg("snapshot scheduler stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "snapshot-scheduler"
}

// runOnce aggregates yesterday's events. Failures are logged and left to
// the next scheduled run; the job itself never crashes the service.
func (s *Scheduler) runOnce(ctx context.Context) {
	yesterday := s.now().UTC().AddDate(0, 0, -1)
	if err := s.runner.AggregateRange(ctx, yesterday, yesterday); err != nil {
		logging.Error().Err(err).Msg("scheduled snapshot run failed")
	}
}

// EventHook adapts supervisor lifecycle events onto the global logger.
func EventHook() suture.EventHook {
	return func(e suture.Event) {
		logging.Warn().
			Str("event", e.String()).
			Msg("supervisor event")
	}
}
