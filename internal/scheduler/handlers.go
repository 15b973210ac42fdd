// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/recurrence"
)

// HandleTaskEvent keeps the schedule in step with task lifecycle events:
// create/update with a recurrence rule registers, delete or a cleared rule
// unregisters. Events without a numeric entity id are ignored.
func (s *Scheduler) HandleTaskEvent(ctx context.Context, env *events.Envelope) error {
	taskID, err := strconv.ParseInt(env.EntityID, 10, 64)
	if err != nil {
		logging.Warn().
			Str("entity_id", env.EntityID).
			Str("event_type", env.Type()).
			Msg("Task event with non-numeric entity id, ignoring")
		return nil
	}

	switch env.Type() {
	case events.TypeTaskDeleted:
		s.Unregister(taskID)
		return nil
	case events.TypeTaskCreated, events.TypeTaskUpdated:
		rule := recurrence.FromPayload(env.Payload["recurring_rule"])
		if rule == nil {
			s.Unregister(taskID)
			return nil
		}
		s.Register(taskID, rule, time.Now().UTC())
		return nil
	default:
		// task_completed and friends do not affect the schedule
		return nil
	}
}
