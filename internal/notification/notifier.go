// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package notification

import (
	"context"
	"time"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

// Notification is the live feed payload for one delivered notification.
type Notification struct {
	EventType string    `json:"event_type"`
	EntityID  string    `json:"entity_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier turns task events into notifications. A nil hub is fine; the
// notifier then only logs.
type Notifier struct {
	hub *Hub
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Deliver handles one task event: structured log plus live feed broadcast.
// Never fails; a notification that cannot be delivered is dropped.
func (n *Notifier) Deliver(_ context.Context, env *events.Envelope) error {
	notif := Notification{
		EventType: env.Type(),
		EntityID:  env.EntityID,
		UserID:    env.UserID,
		Title:     env.PayloadString("title"),
		Timestamp: env.Timestamp,
	}
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now().UTC()
	}

	logging.Info().
		Str("event_type", notif.EventType).
		Str("entity_id", notif.EntityID).
		Str("user_id", notif.UserID).
		Str("title", notif.Title).
		Msg("Notification delivered")

	if n.hub != nil {
		n.hub.Broadcast(Message{Type: MessageTypeNotification, Data: notif})
	}
	metrics.NotificationsDelivered.Inc()
	return nil
}
