// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package audit persists a history row for every event flowing through the
// platform. Records are derived mechanically from event envelopes: the event
// type becomes the action, the entity kind is the prefix of the event type,
// and the payload is stored verbatim as JSON details.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/todomesh/todomesh/internal/events"
)

// Record is one audit trail row.
type Record struct {
	ID         int64           `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	UserID     string          `json:"user_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FromEnvelope derives a record from any event envelope. An envelope without
// a timestamp gets the current time; an unmarshalable payload is stored as
// null rather than failing the write.
func FromEnvelope(env *events.Envelope) *Record {
	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var details json.RawMessage
	if len(env.Payload) > 0 {
		if raw, err := json.Marshal(env.Payload); err == nil {
			details = raw
		}
	}
	return &Record{
		Action:     env.Type(),
		EntityType: env.EntityKind(),
		EntityID:   env.EntityID,
		UserID:     env.UserID,
		Timestamp:  ts,
		Details:    details,
	}
}

// QueryFilter narrows audit queries. Zero value returns the most recent
// records across all users.
type QueryFilter struct {
	UserID     string
	Action     string
	EntityType string
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// DefaultQueryFilter returns a filter with a sane result cap.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

// Store persists audit records.
type Store interface {
	CreateTable(ctx context.Context) error
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, filter QueryFilter) ([]Record, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	CountByAction(ctx context.Context) (map[string]int64, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}
