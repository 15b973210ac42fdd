// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/todomesh/todomesh/internal/bus"
)

// NATSService runs the embedded JetStream server under supervision.
// The server is started inside Serve so a crash-restart cycle brings
// up a fresh instance.
type NATSService struct {
	cfg             bus.ServerConfig
	shutdownTimeout time.Duration
	name            string

	// ready is closed once the server accepts connections; URL()
	// blocks on it so dependents can wait for the broker.
	ready chan struct{}
	url   string
}

// NewNATSService creates the embedded NATS server service.
func NewNATSService(cfg bus.ServerConfig, shutdownTimeout time.Duration) *NATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSService{
		cfg:             cfg,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-server",
		ready:           make(chan struct{}),
	}
}

// URL blocks until the server is accepting connections, then returns
// its client URL.
func (n *NATSService) URL(ctx context.Context) (string, error) {
	select {
	case <-n.ready:
		return n.url, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Serve implements suture.Service.
func (n *NATSService) Serve(ctx context.Context) error {
	server, err := bus.NewEmbeddedServer(n.cfg)
	if err != nil {
		return fmt.Errorf("start embedded nats: %w", err)
	}

	n.url = server.ClientURL()
	select {
	case <-n.ready:
		// Already closed after a restart.
	default:
		close(n.ready)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), n.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("nats shutdown: %w", err)
	}
	return ctx.Err()
}

func (n *NATSService) String() string {
	return n.name
}
