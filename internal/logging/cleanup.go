// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"log/slog"

	"github.com/olegiv/folio-go/internal/model"
)

// CleanupLog is the single channel for storage cleanup failures. Each
// failure is logged at WARN, so the EventLogHandler keeps it in the event
// log where orphaned keys can be found later.
type CleanupLog struct {
	logger *slog.Logger
}

// NewCleanupLog creates a CleanupLog writing to logger.
func NewCleanupLog(logger *slog.Logger) *CleanupLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupLog{logger: logger}
}

// ReportCleanup logs f. A nil failure is ignored.
func (l *CleanupLog) ReportCleanup(ctx context.Context, f *model.CleanupFailure) {
	if f == nil {
		return
	}
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	l.logger.LogAttrs(ctx, slog.LevelWarn, "storage cleanup failed",
		slog.String("category", model.EventCategoryStorage),
		slog.String("table", f.Table),
		slog.String("record_id", f.RecordID),
		slog.Any("keys", f.Keys),
		slog.String("error", errText),
	)
}
