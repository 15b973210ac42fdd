// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package events defines the wire format shared by the backend producer and
// all consumer services: the event envelope, topic names, and the codec that
// tolerates both bare envelopes and CloudEvents-style wrapping.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Event type identifiers carried in Envelope.EventType.
const (
	TypeTaskCreated   = "task_created"
	TypeTaskUpdated   = "task_updated"
	TypeTaskDeleted   = "task_deleted"
	TypeTaskCompleted = "task_completed"

	TypeReminderScheduled = "reminder_scheduled"
	TypeReminderCancelled = "reminder_cancelled"

	TypeAIToolCalled = "ai_tool_called"
)

// Envelope is the transport-level event wrapper. Every logical event carries
// a unique idempotency key; redelivery of the same logical event reuses the
// key so consumers can deduplicate.
type Envelope struct {
	EventType      string         `json:"event_type"`
	EntityID       string         `json:"entity_id"`
	UserID         string         `json:"user_id"`
	Timestamp      time.Time      `json:"timestamp"`
	IdempotencyKey string         `json:"idempotency_key"`
	Payload        map[string]any `json:"payload"`
}

// New creates an envelope with a fresh idempotency key and UTC timestamp.
func New(eventType, entityID, userID string, payload map[string]any) *Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Envelope{
		EventType:      eventType,
		EntityID:       entityID,
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: uuid.New().String(),
		Payload:        payload,
	}
}

// NewAIToolEvent creates an ai_tool_called envelope mirroring the chat tool
// invocation record: tool name, arguments, outcome, and duration.
func NewAIToolEvent(entityID, userID, toolName string, arguments map[string]any, resultStatus string, durationMS int64) *Envelope {
	if entityID == "" {
		entityID = "none"
	}
	return New(TypeAIToolCalled, entityID, userID, map[string]any{
		"tool_name":     toolName,
		"arguments":     arguments,
		"result_status": resultStatus,
		"duration_ms":   durationMS,
	})
}

// Marshal encodes the envelope to JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Type returns the event type, or "unknown" when absent. Consumers route on
// this value and must never branch on an empty string.
func (e *Envelope) Type() string {
	if e.EventType == "" {
		return "unknown"
	}
	return e.EventType
}

// EntityKind derives the entity type from the event type prefix,
// e.g. "task_created" -> "task". Unknown shapes map to "unknown".
func (e *Envelope) EntityKind() string {
	for i := 0; i < len(e.EventType); i++ {
		if e.EventType[i] == '_' {
			return e.EventType[:i]
		}
	}
	if e.EventType == "" {
		return "unknown"
	}
	return e.EventType
}

// PayloadString returns a string payload field, or "" when missing or not a
// string. Payload schemas vary per event type; missing fields are defaults,
// never errors.
func (e *Envelope) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadTime parses an ISO 8601 payload field. Returns zero time when the
// field is missing or malformed.
func (e *Envelope) PayloadTime(key string) time.Time {
	raw := e.PayloadString(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
