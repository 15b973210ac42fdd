// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/recurrence"
	"github.com/todomesh/todomesh/internal/store"
)

type fakeSource struct {
	mu    sync.Mutex
	tasks map[int64]*store.Task
	err   error
}

func newFakeSource(tasks ...*store.Task) *fakeSource {
	s := &fakeSource{tasks: make(map[int64]*store.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (f *fakeSource) TaskByID(_ context.Context, taskID int64) (*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeSource) TasksWithRecurringRule(_ context.Context) ([]*store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*store.Task
	for _, t := range f.tasks {
		if t.RecurringRule != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeSpawner struct {
	mu      sync.Mutex
	spawned []int64
	err     error
	block   chan struct{} // when non-nil, Spawn waits until closed
}

func (f *fakeSpawner) Spawn(_ context.Context, template *store.Task) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, template.ID)
	return f.err
}

func (f *fakeSpawner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawned)
}

func dailyRule() *recurrence.Rule {
	return &recurrence.Rule{Frequency: recurrence.FrequencyDaily, Interval: 1}
}

func dailyTask(id int64) *store.Task {
	return &store.Task{
		ID:            id,
		UserID:        "user-1",
		Title:         "water plants",
		RecurringRule: map[string]any{"frequency": "daily", "interval": float64(1)},
	}
}

func TestRegisterAndSweepAdvancesSchedule(t *testing.T) {
	task := dailyTask(1)
	spawner := &fakeSpawner{}
	s := New(newFakeSource(task), spawner)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Register(task.ID, dailyRule(), now.Add(-48*time.Hour))

	fired := s.Sweep(context.Background(), now)
	if fired != 1 {
		t.Fatalf("expected 1 due task, got %d", fired)
	}
	if spawner.count() != 1 {
		t.Fatalf("expected 1 spawn, got %d", spawner.count())
	}

	next, ok := s.NextTriggerFor(task.ID)
	if !ok {
		t.Fatal("task should remain scheduled after firing")
	}
	if !next.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("schedule should advance from sweep time: got %v", next)
	}
}

func TestSweepNothingDue(t *testing.T) {
	task := dailyTask(1)
	spawner := &fakeSpawner{}
	s := New(newFakeSource(task), spawner)

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Register(task.ID, dailyRule(), now)

	if fired := s.Sweep(context.Background(), now.Add(time.Hour)); fired != 0 {
		t.Errorf("entry due tomorrow should not fire, got %d", fired)
	}
	if spawner.count() != 0 {
		t.Errorf("expected no spawns, got %d", spawner.count())
	}
}

func TestSweepBeforeAnyRegistrationIsNoop(t *testing.T) {
	s := New(newFakeSource(), &fakeSpawner{})
	if fired := s.Sweep(context.Background(), time.Now().UTC()); fired != 0 {
		t.Errorf("empty schedule sweep must be a no-op, got %d", fired)
	}
}

func TestSweepDropsVanishedTemplate(t *testing.T) {
	s := New(newFakeSource(), &fakeSpawner{})
	s.Register(7, dailyRule(), time.Now().UTC().Add(-48*time.Hour))

	if fired := s.Sweep(context.Background(), time.Now().UTC()); fired != 0 {
		t.Errorf("vanished template must not count as due, got %d", fired)
	}
	if _, ok := s.NextTriggerFor(7); ok {
		t.Error("vanished template should be dropped from the schedule")
	}
}

func TestSweepDropsClearedRule(t *testing.T) {
	task := dailyTask(3)
	task.RecurringRule = nil
	s := New(newFakeSource(task), &fakeSpawner{})
	s.Register(task.ID, dailyRule(), time.Now().UTC().Add(-48*time.Hour))

	if fired := s.Sweep(context.Background(), time.Now().UTC()); fired != 0 {
		t.Errorf("cleared rule must not count as due, got %d", fired)
	}
	if _, ok := s.NextTriggerFor(task.ID); ok {
		t.Error("cleared rule should drop the schedule entry")
	}
}

func TestSweepKeepsEntryOnTransientStoreError(t *testing.T) {
	source := newFakeSource(dailyTask(4))
	source.err = errors.New("connection refused")
	s := New(source, &fakeSpawner{})
	s.Register(4, dailyRule(), time.Now().UTC().Add(-48*time.Hour))

	s.Sweep(context.Background(), time.Now().UTC())

	if _, ok := s.NextTriggerFor(4); !ok {
		t.Error("transient store error must not drop the schedule entry")
	}
}

func TestSweepSpawnFailureStillAdvances(t *testing.T) {
	task := dailyTask(5)
	spawner := &fakeSpawner{err: errors.New("backend 503")}
	s := New(newFakeSource(task), spawner)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Register(task.ID, dailyRule(), now.Add(-48*time.Hour))

	if fired := s.Sweep(context.Background(), now); fired != 1 {
		t.Fatalf("spawn failure still counts the task as due, got %d", fired)
	}
	next, _ := s.NextTriggerFor(task.ID)
	if !next.After(now) {
		t.Error("schedule must advance even when the spawn fails")
	}
}

func TestOverlappingSweepSkipped(t *testing.T) {
	task := dailyTask(6)
	block := make(chan struct{})
	spawner := &fakeSpawner{block: block}
	s := New(newFakeSource(task), spawner)

	now := time.Now().UTC()
	s.Register(task.ID, dailyRule(), now.Add(-48*time.Hour))

	done := make(chan int)
	go func() { done <- s.Sweep(context.Background(), now) }()

	// Wait until the first sweep is inside the spawner.
	deadline := time.After(2 * time.Second)
	for s.sweepMu.TryLock() {
		s.sweepMu.Unlock()
		select {
		case <-deadline:
			t.Fatal("first sweep never started")
		case <-time.After(time.Millisecond):
		}
	}

	if fired := s.Sweep(context.Background(), now); fired != 0 {
		t.Errorf("overlapping sweep must be skipped, got %d", fired)
	}

	close(block)
	if fired := <-done; fired != 1 {
		t.Errorf("first sweep should complete normally, got %d", fired)
	}
}

func TestReconcileFromStore(t *testing.T) {
	withRule := dailyTask(10)
	withoutRule := &store.Task{ID: 11, UserID: "user-1", Title: "one-off"}
	s := New(newFakeSource(withRule, withoutRule), &fakeSpawner{})

	s.ReconcileFromStore(context.Background())

	if s.Len() != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", s.Len())
	}
	if _, ok := s.NextTriggerFor(10); !ok {
		t.Error("recurring task should be scheduled after reconcile")
	}
}

func TestReconcileStoreErrorKeepsSchedule(t *testing.T) {
	source := newFakeSource(dailyTask(12))
	s := New(source, &fakeSpawner{})
	s.Register(12, dailyRule(), time.Now().UTC())

	source.err = errors.New("db down")
	s.ReconcileFromStore(context.Background())

	if s.Len() != 1 {
		t.Errorf("failed reconcile must keep existing schedule, got %d entries", s.Len())
	}
}

func TestHandleTaskEvent(t *testing.T) {
	s := New(newFakeSource(), &fakeSpawner{})

	created := events.New(events.TypeTaskCreated, "21", "user-1", map[string]any{
		"recurring_rule": map[string]any{"frequency": "weekly", "interval": float64(2)},
	})
	if err := s.HandleTaskEvent(context.Background(), created); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.NextTriggerFor(21); !ok {
		t.Fatal("task_created with a rule should register")
	}

	cleared := events.New(events.TypeTaskUpdated, "21", "user-1", map[string]any{})
	if err := s.HandleTaskEvent(context.Background(), cleared); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.NextTriggerFor(21); ok {
		t.Fatal("task_updated without a rule should unregister")
	}

	s.Register(22, dailyRule(), time.Now().UTC())
	deleted := events.New(events.TypeTaskDeleted, "22", "user-1", nil)
	if err := s.HandleTaskEvent(context.Background(), deleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.NextTriggerFor(22); ok {
		t.Fatal("task_deleted should unregister")
	}
}

func TestHandleTaskEventNonNumericEntity(t *testing.T) {
	s := New(newFakeSource(), &fakeSpawner{})
	env := events.New(events.TypeTaskCreated, "not-a-number", "user-1", nil)
	if err := s.HandleTaskEvent(context.Background(), env); err != nil {
		t.Errorf("non-numeric entity id must be ignored, not fail: %v", err)
	}
}
