// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a task or reminder does not exist or belongs
// to a different user.
var ErrNotFound = errors.New("not found")

const taskColumns = `id, user_id, title, description, completed, priority, tags,
	due_date, reminder_time, recurring_rule, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	t := &Task{}
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed,
		&t.Priority, &t.Tags, &t.DueDate, &t.ReminderTime, &t.RecurringRule,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return s.Pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, priority, tags, due_date, reminder_time, recurring_rule)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, completed, created_at, updated_at`,
		t.UserID, t.Title, t.Description, t.Priority, t.Tags, t.DueDate, t.ReminderTime, t.RecurringRule,
	).Scan(&t.ID, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
}

func (s *Store) GetTask(ctx context.Context, taskID int64, userID string) (*Task, error) {
	return scanTask(s.Pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	))
}

// buildTaskListQuery assembles the filtered listing statement. Kept separate
// from ListTasks so the WHERE/ORDER BY assembly is testable without a
// database.
func buildTaskListQuery(userID string, f TaskFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`)
	args := []any{userID}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		fmt.Fprintf(&b, ` AND (title ILIKE %s OR description ILIKE %s OR tags::text ILIKE %s)`, p, p, p)
	}
	switch f.Status {
	case "completed":
		b.WriteString(` AND completed = TRUE`)
	case "pending":
		b.WriteString(` AND completed = FALSE`)
	}
	if f.Priority != "" {
		fmt.Fprintf(&b, ` AND priority = %s`, arg(f.Priority))
	}
	if len(f.Tags) > 0 {
		conds := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			conds = append(conds, fmt.Sprintf(`tags::text ILIKE %s`, arg("%"+tag+"%")))
		}
		b.WriteString(` AND (` + strings.Join(conds, " OR ") + `)`)
	}
	if f.DueFrom != nil {
		fmt.Fprintf(&b, ` AND due_date >= %s`, arg(*f.DueFrom))
	}
	if f.DueTo != nil {
		fmt.Fprintf(&b, ` AND due_date <= %s`, arg(*f.DueTo))
	}

	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}
	switch f.SortBy {
	case "priority":
		// Rank names so urgent > high > medium > low regardless of collation.
		b.WriteString(` ORDER BY CASE priority
			WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'urgent' THEN 4
			ELSE 0 END ` + dir)
	case "due_date":
		b.WriteString(` ORDER BY due_date ` + dir + ` NULLS LAST`)
	case "updated_at":
		b.WriteString(` ORDER BY updated_at ` + dir)
	case "created_at":
		b.WriteString(` ORDER BY created_at ` + dir)
	default:
		b.WriteString(` ORDER BY created_at DESC`)
	}

	return b.String(), args
}

func (s *Store) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]*Task, error) {
	query, args := buildTaskListQuery(userID, f)
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	return scanErr(s.Pool.QueryRow(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, completed = $3, priority = $4, tags = $5,
		     due_date = $6, reminder_time = $7, recurring_rule = $8, updated_at = NOW()
		 WHERE id = $9 AND user_id = $10
		 RETURNING updated_at`,
		t.Title, t.Description, t.Completed, t.Priority, t.Tags,
		t.DueDate, t.ReminderTime, t.RecurringRule, t.ID, t.UserID,
	).Scan(&t.UpdatedAt))
}

func (s *Store) DeleteTask(ctx context.Context, taskID int64, userID string) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleTask flips the completion flag and returns the updated row.
func (s *Store) ToggleTask(ctx context.Context, taskID int64, userID string) (*Task, error) {
	return scanTask(s.Pool.QueryRow(ctx,
		`UPDATE tasks SET completed = NOT completed, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskColumns,
		taskID, userID,
	))
}

// TasksWithRecurringRule returns every task carrying a recurrence rule,
// across all users. Used by the recurring consumer to rebuild its schedule
// at startup.
func (s *Store) TasksWithRecurringRule(ctx context.Context) ([]*Task, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE recurring_rule IS NOT NULL`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TaskByID loads a task without a user scope. Consumer-side lookups only;
// the API surface always goes through GetTask.
func (s *Store) TaskByID(ctx context.Context, taskID int64) (*Task, error) {
	return scanTask(s.Pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		taskID,
	))
}

func scanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
