// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/metrics"
)

// EnvelopePublisher marshals envelopes onto the bus. The envelope's
// idempotency key becomes the message UUID, so broker-level dedup and
// consumer-level dedup see the same identity.
type EnvelopePublisher struct {
	publisher message.Publisher
}

func NewEnvelopePublisher(publisher message.Publisher) *EnvelopePublisher {
	return &EnvelopePublisher{publisher: publisher}
}

// Publish sends one envelope to a topic.
func (p *EnvelopePublisher) Publish(topic string, env *events.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := message.NewMessage(env.IdempotencyKey, raw)
	msg.Metadata.Set("event_type", env.Type())

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.EventsPublished.WithLabelValues(topic).Inc()
	return nil
}

func (p *EnvelopePublisher) Close() error {
	return p.publisher.Close()
}
