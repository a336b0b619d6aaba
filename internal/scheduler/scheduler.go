// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs: fallback snapshots
// and event log retention.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrJobRunning is returned by TriggerNow while the job is already running.
var ErrJobRunning = errors.New("job is already running")

// Job is a named unit of periodic work.
type Job struct {
	Name        string
	Description string
	Schedule    string
	// Timeout bounds a single run. Zero means no limit beyond Stop.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler handles scheduled maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	registry *registry
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler instance.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cronLogger{logger}))),
		registry: newRegistry(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds job to the schedule. It may be called before or after Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	sched, err := ParseSchedule(job.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	rj := &registeredJob{job: job}
	err = s.registry.add(rj, func() cron.EntryID {
		return s.cron.Schedule(sched, cron.FuncJob(func() {
			_ = s.run(s.ctx, rj)
		}))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("registered scheduled job", "name", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	return s.registry.list(s.cron)
}

// TriggerNow runs a job immediately in the calling goroutine.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) error {
	rj, ok := s.registry.get(name)
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	s.logger.Info("manually triggering job", "name", name)
	return s.run(ctx, rj)
}

// run executes one job unless a previous run is still in progress.
func (s *Scheduler) run(ctx context.Context, rj *registeredJob) error {
	if !rj.begin() {
		s.logger.Warn("skipping job run, previous run still in progress", "name", rj.job.Name)
		return ErrJobRunning
	}

	if rj.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rj.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := rj.job.Run(ctx)
	rj.finish(start, err)

	if err != nil {
		s.logger.Error("scheduled job failed", "name", rj.job.Name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Debug("scheduled job finished", "name", rj.job.Name, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
