// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"context"
	"strconv"
	"time"

	"github.com/todomesh/todomesh/internal/audit"
	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/store"
)

// TaskStore is the persistence surface the handlers need. *store.Store
// satisfies it; tests substitute an in-memory fake.
type TaskStore interface {
	CreateTask(ctx context.Context, t *store.Task) error
	GetTask(ctx context.Context, taskID int64, userID string) (*store.Task, error)
	ListTasks(ctx context.Context, userID string, f store.TaskFilter) ([]*store.Task, error)
	UpdateTask(ctx context.Context, t *store.Task) error
	DeleteTask(ctx context.Context, taskID int64, userID string) error
	ToggleTask(ctx context.Context, taskID int64, userID string) (*store.Task, error)

	CreateReminder(ctx context.Context, r *store.Reminder) error
	CancelRemindersForTask(ctx context.Context, taskID int64, userID string) (int64, error)
	PendingReminders(ctx context.Context, userID string) ([]*store.Reminder, error)
}

// EventSink receives domain events from the handlers. *bus.Outbox
// satisfies it; enqueueing never blocks the request path.
type EventSink interface {
	Enqueue(topic string, env *events.Envelope)
}

// Server holds the handler dependencies for the REST surface.
type Server struct {
	store TaskStore
	sink  EventSink

	// audit is the read-side store for the admin audit endpoints.
	// Nil disables those routes.
	audit audit.Store

	// ready reports whether downstream dependencies are reachable.
	// Nil means always ready.
	ready func(ctx context.Context) error
}

// NewServer creates the API server.
func NewServer(taskStore TaskStore, sink EventSink, opts ...ServerOption) *Server {
	s := &Server{
		store: taskStore,
		sink:  sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithAuditStore enables the admin audit read endpoints.
func WithAuditStore(st audit.Store) ServerOption {
	return func(s *Server) { s.audit = st }
}

// WithReadinessCheck sets the readiness probe dependency check.
func WithReadinessCheck(fn func(ctx context.Context) error) ServerOption {
	return func(s *Server) { s.ready = fn }
}

// emit enqueues a domain event unless no sink is configured.
func (s *Server) emit(topic string, env *events.Envelope) {
	if s.sink == nil {
		return
	}
	s.sink.Enqueue(topic, env)
}

// taskEntityID renders a task ID the way consumers expect it.
func taskEntityID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// taskPayload builds the event payload for a task. Consumers read
// title for notifications and recurring_rule for schedule updates, so
// both are always carried when present.
func taskPayload(t *store.Task) map[string]any {
	p := map[string]any{
		"title":     t.Title,
		"completed": t.Completed,
		"priority":  t.Priority,
	}
	if t.Description != nil {
		p["description"] = *t.Description
	}
	if len(t.Tags) > 0 {
		p["tags"] = t.Tags
	}
	if t.DueDate != nil {
		p["due_date"] = t.DueDate.UTC().Format(time.RFC3339)
	}
	if t.RecurringRule != nil {
		p["recurring_rule"] = t.RecurringRule
	}
	return p
}
