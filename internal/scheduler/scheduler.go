// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package scheduler owns the in-memory recurrence schedule: one next-trigger
// timestamp per recurring task template. The schedule is rebuilt from the
// store at startup and kept current by task events; periodic sweeps spawn a
// new task instance for every entry whose trigger time has passed.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
	"github.com/todomesh/todomesh/internal/recurrence"
	"github.com/todomesh/todomesh/internal/store"
)

// TaskSource reloads task templates. Satisfied by *store.Store.
type TaskSource interface {
	TaskByID(ctx context.Context, taskID int64) (*store.Task, error)
	TasksWithRecurringRule(ctx context.Context) ([]*store.Task, error)
}

// Spawner creates the next instance of a recurring task. Failures are the
// spawner's problem; the sweep only logs them.
type Spawner interface {
	Spawn(ctx context.Context, template *store.Task) error
}

// Scheduler is safe for concurrent use. The schedule map is guarded by mu;
// sweepMu serializes sweeps without blocking event handling.
type Scheduler struct {
	mu       sync.Mutex
	schedule map[int64]time.Time

	sweepMu sync.Mutex

	source  TaskSource
	spawner Spawner
}

func New(source TaskSource, spawner Spawner) *Scheduler {
	return &Scheduler{
		schedule: make(map[int64]time.Time),
		source:   source,
		spawner:  spawner,
	}
}

// Register computes the task's next trigger from now and stores it. A nil or
// unparseable rule unregisters the task instead.
func (s *Scheduler) Register(taskID int64, rule *recurrence.Rule, now time.Time) {
	next, ok := recurrence.NextTrigger(rule, now)
	if !ok {
		s.Unregister(taskID)
		return
	}

	s.mu.Lock()
	s.schedule[taskID] = next
	size := len(s.schedule)
	s.mu.Unlock()

	metrics.ScheduleSize.Set(float64(size))
	logging.Debug().
		Int64("task_id", taskID).
		Time("next_trigger", next).
		Msg("Recurring task registered")
}

func (s *Scheduler) Unregister(taskID int64) {
	s.mu.Lock()
	_, existed := s.schedule[taskID]
	delete(s.schedule, taskID)
	size := len(s.schedule)
	s.mu.Unlock()

	metrics.ScheduleSize.Set(float64(size))
	if existed {
		logging.Debug().Int64("task_id", taskID).Msg("Recurring task unregistered")
	}
}

// NextTriggerFor reports the scheduled trigger for a task, if registered.
func (s *Scheduler) NextTriggerFor(taskID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.schedule[taskID]
	return next, ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedule)
}

// ReconcileFromStore rebuilds the schedule from every task that carries a
// recurrence rule. Store errors are logged and leave the current schedule
// untouched; a consumer must come up even when the database is down.
func (s *Scheduler) ReconcileFromStore(ctx context.Context) {
	tasks, err := s.source.TasksWithRecurringRule(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Schedule reconciliation failed, keeping current schedule")
		return
	}

	now := time.Now().UTC()
	registered := 0
	for _, t := range tasks {
		rule := recurrence.FromPayload(t.RecurringRule)
		if rule == nil {
			continue
		}
		s.Register(t.ID, rule, now)
		registered++
	}

	logging.Info().
		Int("registered", registered).
		Int("scanned", len(tasks)).
		Msg("Recurrence schedule reconciled from store")
}

// Sweep fires every schedule entry whose trigger has passed: the template is
// reloaded, the schedule advanced from now, and the spawner invoked. Entries
// whose template vanished or whose rule was cleared are dropped. Returns the
// number of due tasks handled. If a sweep is already running this one is
// skipped and returns 0.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) int {
	if !s.sweepMu.TryLock() {
		metrics.SweepsSkipped.Inc()
		logging.Debug().Msg("Sweep already in progress, skipping")
		return 0
	}
	defer s.sweepMu.Unlock()

	start := time.Now()

	s.mu.Lock()
	due := make([]int64, 0)
	for taskID, next := range s.schedule {
		if !next.After(now) {
			due = append(due, taskID)
		}
	}
	s.mu.Unlock()

	fired := 0
	for _, taskID := range due {
		if s.fireDue(ctx, taskID, now) {
			fired++
		}
	}

	s.mu.Lock()
	size := len(s.schedule)
	s.mu.Unlock()
	metrics.ScheduleSize.Set(float64(size))
	metrics.RecordSweep(time.Since(start), fired)

	if fired > 0 {
		logging.Info().Int("due", fired).Msg("Recurrence sweep fired due tasks")
	}
	return fired
}

// fireDue handles one due entry. Returns true when the task counted as due
// (template still recurring), false when the entry was dropped.
func (s *Scheduler) fireDue(ctx context.Context, taskID int64, now time.Time) bool {
	template, err := s.source.TaskByID(ctx, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			s.Unregister(taskID)
			return false
		}
		// Transient store error: leave the entry, retry next sweep.
		logging.Warn().Err(err).Int64("task_id", taskID).Msg("Template reload failed, keeping schedule entry")
		return false
	}

	rule := recurrence.FromPayload(template.RecurringRule)
	if rule == nil {
		s.Unregister(taskID)
		return false
	}

	next, ok := recurrence.NextTrigger(rule, now)
	if !ok {
		s.Unregister(taskID)
		return false
	}
	s.mu.Lock()
	s.schedule[taskID] = next
	s.mu.Unlock()

	if err := s.spawner.Spawn(ctx, template); err != nil {
		logging.Error().Err(err).Int64("task_id", taskID).Msg("Spawn of recurring task instance failed")
	}
	return true
}
