// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package store

import "time"

// Task is a user's todo item. Every task belongs to exactly one user and
// row-level access is enforced by scoping every query on user_id.
type Task struct {
	ID            int64          `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Description   *string        `json:"description,omitempty"`
	Completed     bool           `json:"completed"`
	Priority      string         `json:"priority"`
	Tags          []string       `json:"tags"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	ReminderTime  *time.Time     `json:"reminder_time,omitempty"`
	RecurringRule map[string]any `json:"recurring_rule,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Reminder state transitions: pending -> triggered (on fire) or
// pending -> cancelled (on task delete / explicit cancel).
const (
	ReminderPending   = "pending"
	ReminderTriggered = "triggered"
	ReminderCancelled = "cancelled"
)

type Reminder struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    string    `json:"user_id"`
	TriggerAt time.Time `json:"trigger_at"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilter narrows and orders a task listing. Zero value lists everything
// for the user, newest first.
type TaskFilter struct {
	Search    string   // matches title, description, or tags, case-insensitive
	Status    string   // "pending", "completed", or "all"/empty
	Priority  string   // exact match: low, medium, high, urgent
	Tags      []string // match any
	DueFrom   *time.Time
	DueTo     *time.Time
	SortBy    string // due_date, priority, created_at, updated_at
	SortOrder string // asc or desc (default desc)
}
