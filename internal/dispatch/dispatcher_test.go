// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/todomesh/todomesh/internal/dedup"
	"github.com/todomesh/todomesh/internal/events"
)

func envelopeBody(t *testing.T, env *events.Envelope) []byte {
	t.Helper()
	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestDispatchRoutesToTypedHandler(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	var handled []string
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, env *events.Envelope) error {
		handled = append(handled, env.EntityID)
		return nil
	})

	env := events.New(events.TypeTaskCreated, "1", "user-1", nil)
	if err := d.Dispatch(context.Background(), "todo.events", envelopeBody(t, env)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(handled) != 1 || handled[0] != "1" {
		t.Errorf("handler not invoked: %v", handled)
	}
}

func TestDispatchFallbackHandler(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	calls := 0
	d.HandleTopic("audit.events", func(_ context.Context, _ *events.Envelope) error {
		calls++
		return nil
	})

	env := events.New(events.TypeTaskCompleted, "2", "user-1", nil)
	d.Dispatch(context.Background(), "audit.events", envelopeBody(t, env))
	if calls != 1 {
		t.Errorf("fallback handler should catch unrouted types, got %d calls", calls)
	}
}

func TestDispatchSkipsDuplicates(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	calls := 0
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		calls++
		return nil
	})

	body := envelopeBody(t, events.New(events.TypeTaskCreated, "3", "user-1", nil))
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), "todo.events", body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("redelivery must invoke the handler exactly once, got %d", calls)
	}
}

func TestDispatchHandlerErrorStillMarksProcessed(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	calls := 0
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		calls++
		return errors.New("domain failure")
	})

	body := envelopeBody(t, events.New(events.TypeTaskCreated, "4", "user-1", nil))
	if err := d.Dispatch(context.Background(), "todo.events", body); err != nil {
		t.Fatalf("handler errors must not propagate: %v", err)
	}
	d.Dispatch(context.Background(), "todo.events", body)
	if calls != 1 {
		t.Errorf("failed handler run still consumes the idempotency key, got %d calls", calls)
	}
}

func TestDispatchDecodeFailureReturnsError(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	err := d.Dispatch(context.Background(), "todo.events", []byte("{not json"))
	if err == nil {
		t.Error("undecodable body should surface an error for dead letter routing")
	}
}

func TestDispatchEmptyKeyNeverDeduplicated(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	calls := 0
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		calls++
		return nil
	})

	body := []byte(`{"event_type":"task_created","entity_id":"5","user_id":"u"}`)
	d.Dispatch(context.Background(), "todo.events", body)
	d.Dispatch(context.Background(), "todo.events", body)
	if calls != 2 {
		t.Errorf("events without a key must never be treated as duplicates, got %d", calls)
	}
}

func TestDispatchNoHandlerStillConsumesKey(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		t.Fatal("wrong handler invoked")
		return nil
	})

	env := events.New(events.TypeTaskCompleted, "6", "user-1", nil)
	if err := d.Dispatch(context.Background(), "todo.events", envelopeBody(t, env)); err != nil {
		t.Fatalf("unrouted event must ack cleanly: %v", err)
	}
}

func TestHTTPEventSurface(t *testing.T) {
	d := New(dedup.NewMemoryGuard())

	calls := 0
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		calls++
		return nil
	})

	srv := httptest.NewServer(d.Routes())
	defer srv.Close()

	body := envelopeBody(t, events.New(events.TypeTaskCreated, "7", "user-1", nil))
	resp, err := http.Post(srv.URL+"/events/todo", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var status map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["status"] != "SUCCESS" {
		t.Errorf(`expected {"status":"SUCCESS"}, got %v`, status)
	}
	if calls != 1 {
		t.Errorf("expected handler invocation, got %d", calls)
	}
}

func TestHTTPEventSurfaceMalformedBodyStillSucceeds(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	d.HandleTopic("todo.events", func(_ context.Context, _ *events.Envelope) error { return nil })

	srv := httptest.NewServer(d.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/events/todo", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("poison bodies must still return 200, got %d", resp.StatusCode)
	}
}

func TestSubscribeEndpoint(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	d.HandleTopic("todo.events", func(_ context.Context, _ *events.Envelope) error { return nil })
	d.HandleTopic("audit.events", func(_ context.Context, _ *events.Envelope) error { return nil })

	srv := httptest.NewServer(d.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dapr/subscribe")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()

	var subs []Subscription
	if err := json.NewDecoder(resp.Body).Decode(&subs); err != nil {
		t.Fatalf("decode subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}
	byTopic := make(map[string]Subscription)
	for _, s := range subs {
		byTopic[s.Topic] = s
	}
	todo, ok := byTopic["todo.events"]
	if !ok || todo.Route != "/events/todo" || todo.PubSubName != "pubsub" {
		t.Errorf("unexpected subscription: %+v", todo)
	}
}

func TestCronTickEndpoint(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	d.OnTick(func(_ context.Context) int { return 4 })

	srv := httptest.NewServer(d.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/cron-reminder-check", "application/json", nil)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "SUCCESS" {
		t.Errorf("expected SUCCESS, got %v", body)
	}
	if handled, ok := body["handled"].(float64); !ok || handled != 4 {
		t.Errorf("expected handled count 4, got %v", body["handled"])
	}
}

func TestMessageHandlerAcks(t *testing.T) {
	d := New(dedup.NewMemoryGuard())
	calls := 0
	d.Handle("todo.events", events.TypeTaskCreated, func(_ context.Context, _ *events.Envelope) error {
		calls++
		return nil
	})

	h := d.MessageHandler("todo.events")
	msg := newTestMessage(t, events.New(events.TypeTaskCreated, "8", "user-1", nil))
	if err := h(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestShortTopic(t *testing.T) {
	if got := ShortTopic("todo.events"); got != "todo" {
		t.Errorf("expected todo, got %q", got)
	}
	if got := ShortTopic("cron"); got != "cron" {
		t.Errorf("suffix-free topics pass through, got %q", got)
	}
}
