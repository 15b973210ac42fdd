// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package config loads and validates the application configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, with environment variables taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for both the API server and the
// event consumers. A single struct keeps deployments simple: every
// process reads the same file and picks the sections it needs.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Consumer  ConsumerConfig  `koanf:"consumer"`
	Database  DatabaseConfig  `koanf:"database"`
	Audit     AuditConfig     `koanf:"audit"`
	NATS      NATSConfig      `koanf:"nats"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Spawn     SpawnConfig     `koanf:"spawn"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Security  SecurityConfig  `koanf:"security"`
}

// LoggingConfig controls the global zerolog setup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig holds the HTTP listener settings shared by the API
// server and the consumer event endpoints.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ConsumerConfig selects which consumer role a process runs and how
// its periodic work is driven.
type ConsumerConfig struct {
	// Role is one of: audit, notification, recurring, reminder, all.
	Role string `koanf:"role"`

	// InternalTick drives periodic work (recurrence sweeps, reminder
	// checks) from an in-process ticker. When false the process relies
	// on an external scheduler hitting POST /cron-reminder-check.
	InternalTick bool          `koanf:"internal_tick"`
	TickInterval time.Duration `koanf:"tick_interval"`
}

// DatabaseConfig holds the Postgres connection settings for the task
// and reminder store.
type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	BootstrapSchema bool          `koanf:"bootstrap_schema"`
}

// AuditConfig configures the audit trail store.
type AuditConfig struct {
	// Backend is "duckdb" or "memory".
	Backend   string        `koanf:"backend"`
	Path      string        `koanf:"path"`
	Retention time.Duration `koanf:"retention"`
	MaxMemory int           `koanf:"max_memory_records"`
}

// NATSConfig configures the JetStream connection, the optional
// embedded server, and the Watermill router behaviour.
type NATSConfig struct {
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	SubscribersCount int           `koanf:"subscribers_count"`
	AckWait          time.Duration `koanf:"ack_wait"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxAckPending    int           `koanf:"max_ack_pending"`

	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterThrottlePerSecond    int64         `koanf:"router_throttle_per_second"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`

	OutboxCapacity int `koanf:"outbox_capacity"`
}

// DedupConfig selects the idempotency guard backend.
type DedupConfig struct {
	// Backend is "memory", "window", or "badger".
	Backend  string        `koanf:"backend"`
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
	Dir      string        `koanf:"dir"`
}

// SpawnConfig configures the recurring-task spawner's backend client.
// An empty BackendURL switches spawning to log-only mode.
type SpawnConfig struct {
	BackendURL       string        `koanf:"backend_url"`
	ServiceToken     string        `koanf:"service_token"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`
	RatePerSecond    float64       `koanf:"rate_per_second"`
	RateBurst        int           `koanf:"rate_burst"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// SchedulerConfig configures the recurrence sweep loop.
type SchedulerConfig struct {
	SweepInterval      time.Duration `koanf:"sweep_interval"`
	ReconcileOnStartup bool          `koanf:"reconcile_on_startup"`
}

// SecurityConfig holds the API authentication settings.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

var validRoles = map[string]bool{
	"audit":        true,
	"notification": true,
	"recurring":    true,
	"reminder":     true,
	"all":          true,
}

// Validate checks the configuration for values that would make the
// process misbehave at runtime. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	role := strings.ToLower(c.Consumer.Role)
	if !validRoles[role] {
		return fmt.Errorf("consumer.role must be one of audit, notification, recurring, reminder, all; got %q", c.Consumer.Role)
	}
	c.Consumer.Role = role

	if c.Consumer.InternalTick && c.Consumer.TickInterval < time.Second {
		return fmt.Errorf("consumer.tick_interval must be at least 1s, got %s", c.Consumer.TickInterval)
	}

	switch c.Audit.Backend {
	case "duckdb", "memory":
	default:
		return fmt.Errorf("audit.backend must be duckdb or memory, got %q", c.Audit.Backend)
	}
	if c.Audit.Backend == "duckdb" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit.backend is duckdb")
	}

	switch c.Dedup.Backend {
	case "memory", "window", "badger":
	default:
		return fmt.Errorf("dedup.backend must be memory, window, or badger, got %q", c.Dedup.Backend)
	}
	if c.Dedup.Backend == "badger" && c.Dedup.Dir == "" {
		return fmt.Errorf("dedup.dir is required when dedup.backend is badger")
	}

	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("nats.url is required when nats.embedded_server is false")
	}

	if c.Spawn.BackendURL != "" && c.Spawn.ServiceToken == "" {
		return fmt.Errorf("spawn.service_token is required when spawn.backend_url is set")
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}

	return nil
}

// Addr returns the host:port the HTTP server should listen on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
