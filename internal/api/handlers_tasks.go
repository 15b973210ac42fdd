// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/recurrence"
	"github.com/todomesh/todomesh/internal/store"
)

// handleCreateTask creates a task and emits task_created. When a
// reminder time is supplied a pending reminder row is created in the
// same request and reminder_scheduled is emitted alongside.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	var req CreateTaskRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if req.RecurringRule != nil && recurrence.FromPayload(req.RecurringRule) == nil {
		rw.BadRequest("recurring_rule must contain a frequency")
		return
	}

	task := &store.Task{
		UserID:        userID,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Tags:          req.Tags,
		DueDate:       req.DueDate,
		ReminderTime:  req.ReminderTime,
		RecurringRule: req.RecurringRule,
	}
	if err := s.store.CreateTask(r.Context(), task); err != nil {
		rw.DatabaseError(err)
		return
	}

	s.emit(events.TopicTodo, events.New(
		events.TypeTaskCreated, taskEntityID(task.ID), userID, taskPayload(task)))

	if req.ReminderTime != nil {
		s.scheduleReminder(r, task, *req.ReminderTime)
	}

	logger := logging.Ctx(r.Context())
	logger.Info().
		Int64("task_id", task.ID).
		Str("user_id", userID).
		Msg("Task created")
	rw.Created(task)
}

// scheduleReminder creates the reminder row and emits the event. A
// failed insert is logged but does not fail the task create; the task
// row is already committed.
func (s *Server) scheduleReminder(r *http.Request, task *store.Task, triggerAt time.Time) {
	reminder := &store.Reminder{
		TaskID:    task.ID,
		UserID:    task.UserID,
		TriggerAt: triggerAt,
	}
	if err := s.store.CreateReminder(r.Context(), reminder); err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).
			Int64("task_id", task.ID).
			Msg("Failed to create reminder for task")
		return
	}

	s.emit(events.TopicReminder, events.New(
		events.TypeReminderScheduled, taskEntityID(task.ID), task.UserID, map[string]any{
			"reminder_id": reminder.ID,
			"title":       task.Title,
			"trigger_at":  triggerAt.UTC().Format(time.RFC3339),
		}))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	filter, err := taskFilterFromQuery(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	tasks, err := s.store.ListTasks(r.Context(), userID, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithCount(tasks, len(tasks))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID, userID)
	if err != nil {
		s.taskError(rw, err)
		return
	}

	rw.Success(task)
}

// handleUpdateTask applies a partial update and emits task_updated, or
// task_completed when the update flips the task to completed.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if req.RecurringRule != nil && recurrence.FromPayload(req.RecurringRule) == nil {
		rw.BadRequest("recurring_rule must contain a frequency")
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID, userID)
	if err != nil {
		s.taskError(rw, err)
		return
	}

	wasCompleted := task.Completed
	req.Apply(task)

	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		s.taskError(rw, err)
		return
	}

	eventType := events.TypeTaskUpdated
	if !wasCompleted && task.Completed {
		eventType = events.TypeTaskCompleted
	}
	s.emit(events.TopicTodo, events.New(
		eventType, taskEntityID(task.ID), userID, taskPayload(task)))

	rw.Success(task)
}

// handleDeleteTask removes the task, cancels its pending reminders,
// and emits task_deleted so the scheduler drops any recurrence entry.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	if err := s.store.DeleteTask(r.Context(), taskID, userID); err != nil {
		s.taskError(rw, err)
		return
	}

	cancelled, err := s.store.CancelRemindersForTask(r.Context(), taskID, userID)
	if err != nil {
		// The task row is gone; reminder cleanup failure must not
		// resurrect the request as an error.
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).
			Int64("task_id", taskID).
			Msg("Failed to cancel reminders for deleted task")
	}

	s.emit(events.TopicTodo, events.New(
		events.TypeTaskDeleted, taskEntityID(taskID), userID, nil))
	if cancelled > 0 {
		s.emit(events.TopicReminder, events.New(
			events.TypeReminderCancelled, taskEntityID(taskID), userID, map[string]any{
				"cancelled": cancelled,
			}))
	}

	rw.NoContent()
}

// handleToggleTask flips the completed flag and emits task_completed
// or task_updated depending on the resulting state.
func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	task, err := s.store.ToggleTask(r.Context(), taskID, userID)
	if err != nil {
		s.taskError(rw, err)
		return
	}

	eventType := events.TypeTaskUpdated
	if task.Completed {
		eventType = events.TypeTaskCompleted
	}
	s.emit(events.TopicTodo, events.New(
		eventType, taskEntityID(task.ID), userID, taskPayload(task)))

	rw.Success(task)
}

// handleCompleteTask is the legacy completion endpoint. Unlike toggle
// it is idempotent: completing an already-completed task is a no-op.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID, userID)
	if err != nil {
		s.taskError(rw, err)
		return
	}

	if !task.Completed {
		task, err = s.store.ToggleTask(r.Context(), taskID, userID)
		if err != nil {
			s.taskError(rw, err)
			return
		}
		s.emit(events.TopicTodo, events.New(
			events.TypeTaskCompleted, taskEntityID(task.ID), userID, taskPayload(task)))
	}

	rw.Success(task)
}

// taskIDParam parses the {task_id} path segment. Writes a 400 and
// returns false when it is not a number.
func taskIDParam(rw *ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "task_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		rw.BadRequest("task_id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) taskError(rw *ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("task not found")
		return
	}
	rw.DatabaseError(err)
}

// taskFilterFromQuery maps listing query parameters onto a TaskFilter.
func taskFilterFromQuery(r *http.Request) (store.TaskFilter, error) {
	q := r.URL.Query()
	f := store.TaskFilter{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	for param, dst := range map[string]**time.Time{
		"due_from": &f.DueFrom,
		"due_to":   &f.DueTo,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, errors.New(param + " must be an RFC 3339 timestamp")
		}
		*dst = &t
	}

	return f, nil
}
