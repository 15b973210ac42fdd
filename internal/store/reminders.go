// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package store

import (
	"context"
	"time"
)

func (s *Store) CreateReminder(ctx context.Context, r *Reminder) error {
	r.Status = ReminderPending
	return s.Pool.QueryRow(ctx,
		`INSERT INTO reminders (task_id, user_id, trigger_at, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		r.TaskID, r.UserID, r.TriggerAt, r.Status,
	).Scan(&r.ID, &r.CreatedAt)
}

// CancelRemindersForTask moves every pending reminder of the task to
// cancelled. Returns the number of reminders cancelled.
func (s *Store) CancelRemindersForTask(ctx context.Context, taskID int64, userID string) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE reminders SET status = $1
		 WHERE task_id = $2 AND user_id = $3 AND status = $4`,
		ReminderCancelled, taskID, userID, ReminderPending,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FireDueReminders transitions every pending reminder whose trigger time has
// passed to triggered, as a single set-based statement. Cancelled and already
// triggered reminders are untouched. Returns the number fired.
func (s *Store) FireDueReminders(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE reminders SET status = $1
		 WHERE status = $2 AND trigger_at <= $3`,
		ReminderTriggered, ReminderPending, now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PendingReminders lists a user's pending reminders, soonest first.
func (s *Store) PendingReminders(ctx context.Context, userID string) ([]*Reminder, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, task_id, user_id, trigger_at, status, created_at
		 FROM reminders WHERE user_id = $1 AND status = $2
		 ORDER BY trigger_at ASC`,
		userID, ReminderPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		r := &Reminder{}
		if err := rows.Scan(&r.ID, &r.TaskID, &r.UserID, &r.TriggerAt, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}
