// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Consumer.Role != "all" {
		t.Errorf("default role = %q, want all", cfg.Consumer.Role)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("default addr = %q", cfg.Server.Addr())
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("TODOMESH_SERVER_PORT", "9090")
	t.Setenv("TODOMESH_CONSUMER_ROLE", "Recurring")
	t.Setenv("TODOMESH_NATS_MAX_DELIVER", "7")
	t.Setenv("TODOMESH_CONSUMER_TICK_INTERVAL", "30s")
	t.Setenv("TODOMESH_AUDIT_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Consumer.Role != "recurring" {
		t.Errorf("consumer.role = %q, want recurring (normalized)", cfg.Consumer.Role)
	}
	if cfg.NATS.MaxDeliver != 7 {
		t.Errorf("nats.max_deliver = %d, want 7", cfg.NATS.MaxDeliver)
	}
	if cfg.Consumer.TickInterval != 30*time.Second {
		t.Errorf("consumer.tick_interval = %s, want 30s", cfg.Consumer.TickInterval)
	}
	if cfg.Audit.Backend != "memory" {
		t.Errorf("audit.backend = %q, want memory", cfg.Audit.Backend)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 3000
database:
  dsn: postgres://test:test@db:5432/todomesh
dedup:
  backend: window
  ttl: 1h
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://test:test@db:5432/todomesh" {
		t.Errorf("database.dsn = %q", cfg.Database.DSN)
	}
	if cfg.Dedup.Backend != "window" {
		t.Errorf("dedup.backend = %q, want window", cfg.Dedup.Backend)
	}
	if cfg.Dedup.TTL != time.Hour {
		t.Errorf("dedup.ttl = %s, want 1h", cfg.Dedup.TTL)
	}
	// Untouched sections keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 3000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TODOMESH_SERVER_PORT", "4000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("server.port = %d, want env override 4000", cfg.Server.Port)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("TODOMESH_SECURITY_CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TODOMESH_SERVER_PORT", "server.port"},
		{"TODOMESH_DATABASE_DSN", "database.dsn"},
		{"TODOMESH_NATS_ROUTER_RETRY_COUNT", "nats.router_retry_count"},
		{"TODOMESH_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"TODOMESH_CONSUMER_INTERNAL_TICK", "consumer.internal_tick"},
		{"SERVER_PORT", ""},     // No prefix
		{"TODOMESH_SERVER", ""}, // Section with no field
		{"TODOMESH_UNKNOWN_THING", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad role", func(c *Config) { c.Consumer.Role = "mystery" }},
		{"tick too fast", func(c *Config) { c.Consumer.TickInterval = 100 * time.Millisecond }},
		{"bad audit backend", func(c *Config) { c.Audit.Backend = "sqlite" }},
		{"duckdb without path", func(c *Config) { c.Audit.Path = "" }},
		{"bad dedup backend", func(c *Config) { c.Dedup.Backend = "redis" }},
		{"badger without dir", func(c *Config) { c.Dedup.Backend = "badger"; c.Dedup.Dir = "" }},
		{"no nats url or embedded", func(c *Config) { c.NATS.URL = ""; c.NATS.EmbeddedServer = false }},
		{"spawn url without token", func(c *Config) { c.Spawn.BackendURL = "http://backend:8080" }},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "too-short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestFindConfigFileMissing(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "nope.yaml"))
	t.Chdir(t.TempDir())
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile = %q, want empty", got)
	}
}
