// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions and descriptors such
// as @daily or @every 1h.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	job     Job
	entryID cron.EntryID

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	lastErr  error
	runCount int
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	LastError   string
	NextRun     time.Time
	Runs        int
}

// registry tracks the jobs of one scheduler.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*registeredJob)}
}

// add stores rj once schedule has given it a cron entry.
func (r *registry) add(rj *registeredJob, schedule func() cron.EntryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[rj.job.Name]; ok {
		return fmt.Errorf("job already registered: %s", rj.job.Name)
	}
	rj.entryID = schedule()
	r.jobs[rj.job.Name] = rj
	return nil
}

func (r *registry) get(name string) (*registeredJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rj, ok := r.jobs[name]
	return rj, ok
}

// list returns all registered jobs sorted by name.
func (r *registry) list(c *cron.Cron) []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, rj := range r.jobs {
		rj.mu.Lock()
		info := JobInfo{
			Name:        rj.job.Name,
			Description: rj.job.Description,
			Schedule:    rj.job.Schedule,
			LastRun:     rj.lastRun,
			Runs:        rj.runCount,
		}
		if rj.lastErr != nil {
			info.LastError = rj.lastErr.Error()
		}
		rj.mu.Unlock()

		if c != nil {
			info.NextRun = c.Entry(rj.entryID).Next
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// begin marks the job running. It returns false when a run is already in
// progress.
func (rj *registeredJob) begin() bool {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	if rj.running {
		return false
	}
	rj.running = true
	return true
}

func (rj *registeredJob) finish(at time.Time, err error) {
	rj.mu.Lock()
	defer rj.mu.Unlock()
	rj.running = false
	rj.lastRun = at
	rj.lastErr = err
	rj.runCount++
}
