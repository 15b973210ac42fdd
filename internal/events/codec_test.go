// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package events

import (
	"testing"
	"time"
)

func TestDecodeBareEnvelope(t *testing.T) {
	raw := []byte(`{
		"event_type": "task_created",
		"entity_id": "42",
		"user_id": "u1",
		"idempotency_key": "key-1",
		"payload": {"title": "water plants"}
	}`)

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.EventType != TypeTaskCreated {
		t.Errorf("EventType = %q, want %q", env.EventType, TypeTaskCreated)
	}
	if env.EntityID != "42" {
		t.Errorf("EntityID = %q, want %q", env.EntityID, "42")
	}
	if env.PayloadString("title") != "water plants" {
		t.Errorf("payload title = %q", env.PayloadString("title"))
	}
}

func TestDecodeCloudEventsWrapped(t *testing.T) {
	raw := []byte(`{
		"id": "ce-1",
		"source": "todomesh-server",
		"data": {
			"event_type": "reminder_scheduled",
			"entity_id": "7",
			"user_id": "u2",
			"idempotency_key": "key-2",
			"payload": {"task_id": 3, "trigger_at": "2026-09-01T10:00:00Z"}
		}
	}`)

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.EventType != TypeReminderScheduled {
		t.Errorf("EventType = %q, want %q", env.EventType, TypeReminderScheduled)
	}
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if got := env.PayloadTime("trigger_at"); !got.Equal(want) {
		t.Errorf("trigger_at = %v, want %v", got, want)
	}
}

func TestDecodeMissingFieldsDefault(t *testing.T) {
	env, err := Decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("Decode of empty object should not fail: %v", err)
	}
	if env.Type() != "unknown" {
		t.Errorf("Type() = %q, want unknown", env.Type())
	}
	if env.IdempotencyKey != "" {
		t.Errorf("IdempotencyKey = %q, want empty", env.IdempotencyKey)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"event_type": `)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestEntityKind(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"task_created", "task"},
		{"reminder_scheduled", "reminder"},
		{"ai_tool_called", "ai"},
		{"ping", "ping"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		env := &Envelope{EventType: tt.eventType}
		if got := env.EntityKind(); got != tt.want {
			t.Errorf("EntityKind(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}

func TestNewEnvelopeHasKey(t *testing.T) {
	env := New(TypeTaskCreated, "1", "u1", nil)
	if env.IdempotencyKey == "" {
		t.Error("New envelope must carry an idempotency key")
	}
	if env.Payload == nil {
		t.Error("nil payload should be normalized to empty map")
	}
	if env.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	other := New(TypeTaskCreated, "1", "u1", nil)
	if other.IdempotencyKey == env.IdempotencyKey {
		t.Error("idempotency keys must be unique per logical event")
	}
}

func TestPayloadTimeMalformed(t *testing.T) {
	env := &Envelope{Payload: map[string]any{"trigger_at": "not-a-time"}}
	if !env.PayloadTime("trigger_at").IsZero() {
		t.Error("malformed timestamps should decode to zero time")
	}
}
