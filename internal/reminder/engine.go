// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package reminder fires due reminders. The consumer only flips reminder
// state in the store; reminder_scheduled and reminder_cancelled events are
// acknowledged for the audit trail, the rows themselves are written by the
// backend at request time.
package reminder

import (
	"context"
	"time"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

// ReminderStore is the slice of the relational store the engine needs.
// Satisfied by *store.Store.
type ReminderStore interface {
	FireDueReminders(ctx context.Context, now time.Time) (int64, error)
}

type Engine struct {
	store ReminderStore
}

func NewEngine(store ReminderStore) *Engine {
	return &Engine{store: store}
}

// CheckAndFireDue transitions every pending reminder due at now to triggered
// and returns how many fired. A store failure logs and reports zero; the
// reminders stay pending and the next check picks them up.
func (e *Engine) CheckAndFireDue(ctx context.Context, now time.Time) int {
	fired, err := e.store.FireDueReminders(ctx, now)
	if err != nil {
		metrics.ReminderCheckErrors.Inc()
		logging.Error().Err(err).Msg("Due reminder check failed")
		return 0
	}
	if fired > 0 {
		metrics.RemindersFired.Add(float64(fired))
		logging.Info().Int64("fired", fired).Msg("Reminders triggered")
	}
	return int(fired)
}

// HandleScheduled acknowledges a reminder_scheduled event. The reminder row
// already exists; this is observability only.
func (e *Engine) HandleScheduled(_ context.Context, env *events.Envelope) error {
	logging.Info().
		Str("entity_id", env.EntityID).
		Str("user_id", env.UserID).
		Time("trigger_at", env.PayloadTime("trigger_at")).
		Msg("Reminder scheduled")
	return nil
}

// HandleCancelled acknowledges a reminder_cancelled event.
func (e *Engine) HandleCancelled(_ context.Context, env *events.Envelope) error {
	logging.Info().
		Str("entity_id", env.EntityID).
		Str("user_id", env.UserID).
		Msg("Reminder cancelled")
	return nil
}
