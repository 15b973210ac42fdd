// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/store"
)

// handleCreateReminder schedules a reminder for an existing task and
// emits reminder_scheduled.
func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	var req CreateReminderRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID, userID)
	if err != nil {
		s.taskError(rw, err)
		return
	}

	reminder := &store.Reminder{
		TaskID:    task.ID,
		UserID:    userID,
		TriggerAt: req.TriggerAt,
	}
	if err := s.store.CreateReminder(r.Context(), reminder); err != nil {
		rw.DatabaseError(err)
		return
	}

	s.emit(events.TopicReminder, events.New(
		events.TypeReminderScheduled, taskEntityID(task.ID), userID, map[string]any{
			"reminder_id": reminder.ID,
			"title":       task.Title,
			"trigger_at":  req.TriggerAt.UTC().Format(time.RFC3339),
		}))

	rw.Created(reminder)
}

// handleCancelReminders cancels every pending reminder on a task and
// emits reminder_cancelled when any were pending.
func (s *Server) handleCancelReminders(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	taskID, ok := taskIDParam(rw, r)
	if !ok {
		return
	}

	cancelled, err := s.store.CancelRemindersForTask(r.Context(), taskID, userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	if cancelled > 0 {
		s.emit(events.TopicReminder, events.New(
			events.TypeReminderCancelled, taskEntityID(taskID), userID, map[string]any{
				"cancelled": cancelled,
			}))
	}

	rw.NoContent()
}

// handleListReminders returns the user's pending reminders.
func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := chi.URLParam(r, "user_id")

	reminders, err := s.store.PendingReminders(r.Context(), userID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithCount(reminders, len(reminders))
}
