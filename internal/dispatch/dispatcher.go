// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package dispatch routes decoded event envelopes to domain handlers behind
// a single idempotency guard. The same dispatcher serves both transports:
// the message bus router and the HTTP event surface, so dedup and routing
// behave identically regardless of how an event arrives.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/todomesh/todomesh/internal/dedup"
	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

// Handler processes one decoded envelope. A handler error is logged and
// counted but never propagates to the transport; delivery is still
// acknowledged and the idempotency key still marked.
type Handler func(ctx context.Context, env *events.Envelope) error

// TickFunc runs one scheduled check (reminder fire, recurrence sweep) and
// reports how many items it handled.
type TickFunc func(ctx context.Context) int

// Dispatcher is assembled at wiring time and read-only afterwards.
type Dispatcher struct {
	guard    dedup.Guard
	routes   map[string]map[string]Handler // topic -> event type -> handler
	fallback map[string]Handler            // topic -> catch-all handler
	tick     TickFunc
}

func New(guard dedup.Guard) *Dispatcher {
	return &Dispatcher{
		guard:    guard,
		routes:   make(map[string]map[string]Handler),
		fallback: make(map[string]Handler),
	}
}

// Handle registers a handler for one event type on a topic.
func (d *Dispatcher) Handle(topic, eventType string, h Handler) {
	if d.routes[topic] == nil {
		d.routes[topic] = make(map[string]Handler)
	}
	d.routes[topic][eventType] = h
}

// HandleTopic registers a catch-all handler for every event type on a topic
// that has no specific handler.
func (d *Dispatcher) HandleTopic(topic string, h Handler) {
	d.fallback[topic] = h
}

// OnTick registers the scheduled-check callback exposed on the HTTP surface.
func (d *Dispatcher) OnTick(fn TickFunc) {
	d.tick = fn
}

// Topics lists every topic with at least one handler. Order is unspecified;
// callers treat this as a set.
func (d *Dispatcher) Topics() []string {
	seen := make(map[string]bool)
	var topics []string
	for t := range d.routes {
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	for t := range d.fallback {
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}
	return topics
}

// Tick runs the registered scheduled check, if any.
func (d *Dispatcher) Tick(ctx context.Context) int {
	if d.tick == nil {
		return 0
	}
	return d.tick(ctx)
}

// Dispatch decodes and routes one raw event body. The only error returned is
// a decode failure, so the bus transport can route the poison body to the
// dead letter topic. Everything past decoding is absorbed here: duplicates
// are skipped, handler errors are logged, and the idempotency key is marked
// processed once the handler has run either way.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, raw []byte) error {
	metrics.RecordEventConsumed(topic)

	env, err := events.Decode(raw)
	if err != nil {
		metrics.EventsParseFailed.WithLabelValues(topic).Inc()
		logging.Warn().Err(err).Str("topic", topic).Msg("Undecodable event body")
		return fmt.Errorf("dispatch %s: %w", topic, err)
	}

	log := logging.Ctx(ctx).With().
		Str("topic", topic).
		Str("event_type", env.Type()).
		Str("entity_id", env.EntityID).
		Str("idempotency_key", env.IdempotencyKey).
		Logger()

	if d.guard.IsDuplicate(env.IdempotencyKey) {
		metrics.EventsDeduplicated.WithLabelValues(topic).Inc()
		log.Info().Msg("Duplicate event skipped")
		return nil
	}

	handler := d.lookup(topic, env.Type())
	if handler == nil {
		log.Debug().Msg("No handler for event, acknowledged")
		d.guard.MarkProcessed(env.IdempotencyKey)
		return nil
	}

	start := time.Now()
	herr := handler(ctx, env)
	metrics.RecordHandlerResult(topic, env.Type(), time.Since(start), herr)
	if herr != nil {
		log.Error().Err(herr).Msg("Event handler failed, acknowledging anyway")
	}

	// Marked after the handler so a crash mid-handler lets redelivery retry.
	d.guard.MarkProcessed(env.IdempotencyKey)
	return nil
}

func (d *Dispatcher) lookup(topic, eventType string) Handler {
	if byType, ok := d.routes[topic]; ok {
		if h, ok := byType[eventType]; ok {
			return h
		}
	}
	return d.fallback[topic]
}

// ShortTopic strips the ".events" suffix: "todo.events" -> "todo". The HTTP
// event routes are addressed by short name.
func ShortTopic(topic string) string {
	return strings.TrimSuffix(topic, ".events")
}
