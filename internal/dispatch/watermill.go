// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package dispatch

import (
	"github.com/ThreeDotsLabs/watermill/message"
)

// MessageHandler adapts the dispatcher to a Watermill consumer handler for
// one topic. Only decode failures propagate as errors; the router's retry
// and poison middleware turn those into dead letter messages. Everything
// else acks on the first delivery.
func (d *Dispatcher) MessageHandler(topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		return d.Dispatch(msg.Context(), topic, msg.Payload)
	}
}
