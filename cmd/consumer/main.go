// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package main is the Todomesh event consumer.
//
// One binary serves every consumer role; -role (or consumer.role in
// the config) selects which handlers are wired:
//
//   - audit: records every event into the audit trail (DuckDB)
//   - notification: fans events out to WebSocket clients
//   - recurring: maintains the recurrence schedule and spawns instances
//   - reminder: fires due reminders
//   - all: everything above in one process
//
// Events arrive two ways, both feeding the same dispatcher: durable
// JetStream subscriptions through the Watermill router, and the HTTP
// event endpoints (POST /events/{name}) for sidecar-style delivery.
// Periodic work (recurrence sweeps, reminder checks) runs from an
// internal tick loop, or from POST /cron-reminder-check when an
// external scheduler drives it.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/todomesh/todomesh/internal/api"
	"github.com/todomesh/todomesh/internal/audit"
	"github.com/todomesh/todomesh/internal/bus"
	"github.com/todomesh/todomesh/internal/config"
	"github.com/todomesh/todomesh/internal/dedup"
	"github.com/todomesh/todomesh/internal/dispatch"
	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/notification"
	"github.com/todomesh/todomesh/internal/reminder"
	"github.com/todomesh/todomesh/internal/scheduler"
	"github.com/todomesh/todomesh/internal/spawn"
	"github.com/todomesh/todomesh/internal/store"
	"github.com/todomesh/todomesh/internal/supervisor"
	"github.com/todomesh/todomesh/internal/supervisor/services"
)

func main() {
	roleFlag := flag.String("role", "", "consumer role: audit, notification, recurring, reminder, all (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *roleFlag != "" {
		cfg.Consumer.Role = *roleFlag
		if err := cfg.Validate(); err != nil {
			logging.Fatal().Err(err).Msg("Invalid role flag")
		}
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	role := cfg.Consumer.Role
	has := func(r string) bool { return role == "all" || role == r }

	logging.Info().
		Str("role", role).
		Bool("internal_tick", cfg.Consumer.InternalTick).
		Msg("Starting todomesh consumer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The tree starts serving immediately; services added below attach
	// to the running supervisors.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	errCh := tree.ServeBackground(ctx)

	// The embedded broker starts under supervision; everything that
	// needs a NATS URL waits for it to accept connections.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg := bus.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		natsSvc := services.NewNATSService(serverCfg, 10*time.Second)
		tree.AddTransportService(natsSvc)

		url, err := natsSvc.URL(ctx)
		if err != nil {
			logging.Fatal().Err(err).Msg("Embedded NATS server did not become ready")
		}
		natsURL = url
	}

	guard, closeGuard := buildGuard(cfg)
	defer closeGuard()

	dispatcher := dispatch.New(guard)
	var tickFns []dispatch.TickFunc

	// Postgres is only needed by the roles that touch tasks.
	var st *store.Store
	if has("recurring") || has("reminder") {
		st, err = store.New(ctx, cfg.Database.DSN)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer st.Close()
	}

	var auditSrv *api.Server
	if has("audit") {
		auditStore := buildAuditStore(ctx, cfg)
		recorder := audit.NewRecorder(auditStore)
		for _, topic := range []string{
			events.TopicTodo, events.TopicReminder,
			events.TopicRecurring, events.TopicAI,
		} {
			dispatcher.HandleTopic(topic, recorder.Record)
		}
		recorder.StartCleanupRoutine(ctx, cfg.Audit.Retention)

		auditSrv = api.NewServer(nil, nil, api.WithAuditStore(auditStore))
	}

	var hub *notification.Hub
	if has("notification") {
		hub = notification.NewHub()
		tree.AddWorkerService(services.NewRunnerService(
			"notification-hub", services.RunFunc(hub.RunWithContext)))

		notifier := notification.NewNotifier(hub)
		dispatcher.HandleTopic(events.TopicTodo, notifier.Deliver)
		dispatcher.HandleTopic(events.TopicReminder, notifier.Deliver)
	}

	if has("recurring") {
		sched := scheduler.New(st, buildSpawner(cfg))
		for _, eventType := range []string{
			events.TypeTaskCreated, events.TypeTaskUpdated, events.TypeTaskDeleted,
		} {
			dispatcher.Handle(events.TopicTodo, eventType, sched.HandleTaskEvent)
		}
		if cfg.Scheduler.ReconcileOnStartup {
			sched.ReconcileFromStore(ctx)
		}
		tickFns = append(tickFns, func(ctx context.Context) int {
			return sched.Sweep(ctx, time.Now())
		})
	}

	if has("reminder") {
		engine := reminder.NewEngine(st)
		dispatcher.Handle(events.TopicReminder, events.TypeReminderScheduled, engine.HandleScheduled)
		dispatcher.Handle(events.TopicReminder, events.TypeReminderCancelled, engine.HandleCancelled)
		tickFns = append(tickFns, func(ctx context.Context) int {
			return engine.CheckAndFireDue(ctx, time.Now())
		})
	}

	if len(tickFns) > 0 {
		dispatcher.OnTick(func(ctx context.Context) int {
			total := 0
			for _, fn := range tickFns {
				total += fn(ctx)
			}
			return total
		})
	}

	// Durable JetStream consumption: one handler per routed topic, with
	// retries and per-topic dead-lettering handled by the router.
	poisonPub, err := bus.NewNATSPublisher(bus.DefaultPublisherConfig(natsURL), logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create NATS publisher")
	}
	subscriber, err := bus.NewNATSSubscriber(subscriberConfig(cfg, natsURL, role), logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create NATS subscriber")
	}
	router, err := bus.NewRouter(routerConfig(cfg), poisonPub, logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create message router")
	}
	for _, topic := range dispatcher.Topics() {
		router.AddConsumerHandler(
			"consume-"+dispatch.ShortTopic(topic), topic, subscriber,
			dispatcher.MessageHandler(topic))
	}
	tree.AddTransportService(services.NewRunnerService("event-router", router))

	if cfg.Consumer.InternalTick {
		tree.AddWorkerService(services.NewTickService(
			"periodic-check", cfg.Consumer.TickInterval,
			func(ctx context.Context) { dispatcher.Tick(ctx) }))
	}

	routes := dispatcher.Routes()
	routes.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		routes.Handle("/ws", notification.ServeWS(hub))
	}
	if auditSrv != nil {
		auth := api.NewAuth(cfg.Security.JWTSecret, cfg.Spawn.ServiceToken)
		routes.Route("/api/admin", func(r chi.Router) {
			r.Use(auth.RequireService)
			r.Mount("/", auditSrv.AuditRoutes())
		})
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

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

	logging.Info().Str("role", role).Msg("Todomesh consumer stopped")
}

// buildGuard creates the idempotency guard for the configured backend.
func buildGuard(cfg *config.Config) (dedup.Guard, func()) {
	switch cfg.Dedup.Backend {
	case "window":
		return dedup.NewWindowGuard(cfg.Dedup.Capacity, cfg.Dedup.TTL), func() {}
	case "badger":
		guard, err := dedup.NewBadgerGuard(cfg.Dedup.Dir, cfg.Dedup.TTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open badger dedup store")
		}
		return guard, func() {
			if err := guard.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing badger dedup store")
			}
		}
	default:
		return dedup.NewMemoryGuard(), func() {}
	}
}

// buildAuditStore opens the configured audit backend and creates its
// schema.
func buildAuditStore(ctx context.Context, cfg *config.Config) audit.Store {
	var auditStore audit.Store
	if cfg.Audit.Backend == "duckdb" {
		db, err := sql.Open("duckdb", cfg.Audit.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Audit.Path).Msg("Failed to open audit database")
		}
		auditStore = audit.NewDuckDBStore(db)
	} else {
		auditStore = audit.NewMemoryStore(cfg.Audit.MaxMemory)
	}
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit schema")
	}
	return auditStore
}

// buildSpawner returns the HTTP spawner when a backend URL is
// configured, falling back to log-only spawning otherwise.
func buildSpawner(cfg *config.Config) scheduler.Spawner {
	if cfg.Spawn.BackendURL == "" {
		logging.Info().Msg("No spawn backend configured, recurring instances will be logged only")
		return spawn.LogSpawner{}
	}
	spawnCfg := spawn.DefaultConfig()
	spawnCfg.BackendURL = cfg.Spawn.BackendURL
	spawnCfg.ServiceToken = cfg.Spawn.ServiceToken
	spawnCfg.RequestTimeout = cfg.Spawn.RequestTimeout
	spawnCfg.RatePerSecond = cfg.Spawn.RatePerSecond
	spawnCfg.RateBurst = cfg.Spawn.RateBurst
	spawnCfg.BreakerFailureThreshold = cfg.Spawn.BreakerThreshold
	spawnCfg.BreakerTimeout = cfg.Spawn.BreakerTimeout
	return spawn.NewHTTPSpawner(spawnCfg)
}

func subscriberConfig(cfg *config.Config, url, role string) bus.SubscriberConfig {
	sc := bus.DefaultSubscriberConfig(url, role)
	if cfg.NATS.SubscribersCount > 0 {
		sc.SubscribersCount = cfg.NATS.SubscribersCount
	}
	if cfg.NATS.AckWait > 0 {
		sc.AckWaitTimeout = cfg.NATS.AckWait
	}
	if cfg.NATS.MaxDeliver > 0 {
		sc.MaxDeliver = cfg.NATS.MaxDeliver
	}
	if cfg.NATS.MaxAckPending > 0 {
		sc.MaxAckPending = cfg.NATS.MaxAckPending
	}
	return sc
}

func routerConfig(cfg *config.Config) bus.RouterConfig {
	rc := bus.DefaultRouterConfig()
	if cfg.NATS.RouterCloseTimeout > 0 {
		rc.CloseTimeout = cfg.NATS.RouterCloseTimeout
	}
	if cfg.NATS.RouterRetryCount > 0 {
		rc.RetryMaxRetries = cfg.NATS.RouterRetryCount
	}
	if cfg.NATS.RouterRetryInitialInterval > 0 {
		rc.RetryInitialInterval = cfg.NATS.RouterRetryInitialInterval
	}
	rc.ThrottlePerSecond = cfg.NATS.RouterThrottlePerSecond
	return rc
}
