// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/todomesh/todomesh/internal/events"
)

// Router wraps the Watermill router with the consumer middleware chain:
// panic recovery, bounded exponential retry, and dead letter routing for
// messages that still fail afterwards.
type Router struct {
	router *message.Router
	config RouterConfig
	logger watermill.LoggerAdapter
}

// NewRouter builds the consumer router. poisonPublisher receives messages
// that exhaust their retries, on the source topic plus the dead letter
// suffix; pass nil to disable dead letter routing.
func NewRouter(cfg RouterConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: recover panics, dead letter exhausted messages,
	// retry transient failures.
	wmRouter.AddMiddleware(middleware.Recoverer)

	if poisonPublisher != nil {
		wmRouter.AddMiddleware(deadLetter(poisonPublisher, logger))
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	return &Router{router: wmRouter, config: cfg, logger: logger}, nil
}

// deadLetter copies a failed message to its topic's dead letter counterpart
// and swallows the error so the original is acked. Losing the copy is the
// one case where the error propagates and the message redelivers.
func deadLetter(pub message.Publisher, logger watermill.LoggerAdapter) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			msgs, err := h(msg)
			if err == nil {
				return msgs, nil
			}

			topic := message.SubscribeTopicFromCtx(msg.Context())
			if topic == "" {
				topic = "unknown"
			}

			dead := message.NewMessage(msg.UUID, msg.Payload)
			for k, v := range msg.Metadata {
				dead.Metadata.Set(k, v)
			}
			dead.Metadata.Set("reason", err.Error())
			dead.Metadata.Set("source_topic", topic)

			if perr := pub.Publish(events.DeadLetterTopic(topic), dead); perr != nil {
				logger.Error("Dead letter publish failed", perr, watermill.LogFields{
					"topic": topic,
				})
				return nil, err
			}

			logger.Info("Message dead lettered", watermill.LogFields{
				"topic":  topic,
				"reason": err.Error(),
			})
			return nil, nil
		}
	}
}

// AddConsumerHandler registers a read-only handler for one topic.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) {
	r.router.AddConsumerHandler(name, topic, subscriber, handler)
}

// Run blocks until the context is cancelled or the router fails.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once the router has started all handlers.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	return r.router.Close()
}
