// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job names
const (
	JobSnapshot       = "fallback-snapshot"
	JobEventRetention = "event-retention"
)

// EventRetentionSchedule runs the event log cleanup once a day.
const EventRetentionSchedule = "30 3 * * *"

// SnapshotRunner rebuilds the fallback dataset. service.Snapshotter
// implements it.
type SnapshotRunner interface {
	Run(ctx context.Context) (int, error)
}

// EventPruner deletes old event log entries. service.EventService
// implements it.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SnapshotJob refreshes the fallback dataset from published records.
func SnapshotJob(schedule string, runner SnapshotRunner, logger *slog.Logger) Job {
	return Job{
		Name:        JobSnapshot,
		Description: "Rebuild the offline fallback dataset from published records",
		Schedule:    schedule,
		Timeout:     10 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("fallback snapshot written", "records", n)
			return nil
		},
	}
}

// EventRetentionJob deletes events older than retention.
func EventRetentionJob(retention time.Duration, pruner EventPruner, logger *slog.Logger) Job {
	return Job{
		Name:        JobEventRetention,
		Description: "Delete event log entries past the retention period",
		Schedule:    EventRetentionSchedule,
		Timeout:     time.Minute,
		Run: func(ctx context.Context) error {
			n, err := pruner.DeleteOldEvents(ctx, retention)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("old events deleted", "count", n, "retention", retention)
			}
			return nil
		},
	}
}
