// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package bus

import (
	"context"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

type outboxEntry struct {
	topic string
	env   *events.Envelope
}

// Outbox decouples event publishing from the request path. Enqueue never
// blocks: a full queue drops the event with a warning, because a slow broker
// must not slow down or fail API writes. Event delivery is fire-and-forget;
// the relational write is the source of truth.
type Outbox struct {
	publisher *EnvelopePublisher
	queue     chan outboxEntry
	done      chan struct{}
}

// NewOutbox creates an outbox with the given queue capacity.
func NewOutbox(publisher *EnvelopePublisher, capacity int) *Outbox {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Outbox{
		publisher: publisher,
		queue:     make(chan outboxEntry, capacity),
		done:      make(chan struct{}),
	}
}

// Enqueue queues an envelope for publishing. Never blocks.
func (o *Outbox) Enqueue(topic string, env *events.Envelope) {
	select {
	case o.queue <- outboxEntry{topic: topic, env: env}:
		metrics.OutboxQueueDepth.Set(float64(len(o.queue)))
	default:
		metrics.OutboxDropped.Inc()
		logging.Warn().
			Str("topic", topic).
			Str("event_type", env.Type()).
			Msg("Outbox full, event dropped")
	}
}

// Run drains the queue until the context is cancelled, then flushes whatever
// is already queued before returning.
func (o *Outbox) Run(ctx context.Context) error {
	defer close(o.done)

	for {
		select {
		case <-ctx.Done():
			o.flush()
			return ctx.Err()
		case entry := <-o.queue:
			o.publish(entry)
		}
	}
}

func (o *Outbox) flush() {
	for {
		select {
		case entry := <-o.queue:
			o.publish(entry)
		default:
			return
		}
	}
}

func (o *Outbox) publish(entry outboxEntry) {
	metrics.OutboxQueueDepth.Set(float64(len(o.queue)))
	if err := o.publisher.Publish(entry.topic, entry.env); err != nil {
		logging.Error().Err(err).
			Str("topic", entry.topic).
			Str("event_type", entry.env.Type()).
			Msg("Outbox publish failed, event lost")
	}
}

// Done is closed once Run has returned.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Len reports the current queue depth.
func (o *Outbox) Len() int {
	return len(o.queue)
}
