// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package main is the Todomesh API server.
//
// The server owns the task and reminder store (Postgres) and the REST
// surface. Every write emits a domain event through an in-process
// outbox onto NATS JetStream, where the consumer processes pick it up.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML, env)
//  2. Logging: global zerolog from the logging section
//  3. Store: pgx pool against Postgres, optional schema bootstrap
//  4. Publisher: Watermill NATS JetStream publisher behind the outbox
//  5. Supervisor: suture tree running the outbox drain and HTTP server
//
// Graceful shutdown on SIGINT/SIGTERM: the HTTP listener drains,
// then the outbox flushes queued events before the publisher closes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/todomesh/todomesh/internal/api"
	"github.com/todomesh/todomesh/internal/bus"
	"github.com/todomesh/todomesh/internal/config"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/store"
	"github.com/todomesh/todomesh/internal/supervisor"
	"github.com/todomesh/todomesh/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("nats_url", cfg.NATS.URL).
		Msg("Starting todomesh API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.Database.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer st.Close()

	if cfg.Database.BootstrapSchema {
		if err := st.Bootstrap(ctx); err != nil {
			logging.Fatal().Err(err).Msg("Failed to bootstrap schema")
		}
	}

	publisher, err := bus.NewNATSPublisher(bus.DefaultPublisherConfig(cfg.NATS.URL), logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create NATS publisher")
	}
	envPublisher := bus.NewEnvelopePublisher(publisher)
	defer func() {
		if err := envPublisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	outbox := bus.NewOutbox(envPublisher, cfg.NATS.OutboxCapacity)

	auth := api.NewAuth(cfg.Security.JWTSecret, cfg.Spawn.ServiceToken)
	server := api.NewServer(st, outbox,
		api.WithReadinessCheck(func(ctx context.Context) error {
			return st.Pool.Ping(ctx)
		}))
	router := server.Router(auth, api.RouterConfig{
		CORSOrigins:     cfg.Security.CORSOrigins,
		RateLimitReqs:   cfg.Security.RateLimitReqs,
		RateLimitWindow: cfg.Security.RateLimitWindow,
	}, nil)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddWorkerService(services.NewRunnerService("event-outbox", outbox))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		logging.Error().Err(err).Msg("Supervisor exited unexpectedly")
	}

	logging.Info().Msg("Todomesh API server stopped")
}
