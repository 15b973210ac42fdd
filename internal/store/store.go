// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package store is the relational persistence layer for tasks and reminders,
// backed by PostgreSQL through pgxpool. All queries are scoped by user_id;
// cross-user reads are impossible by construction.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/todomesh/todomesh/internal/logging"
)

// Store wraps a pgx connection pool. Safe for concurrent use.
type Store struct {
	Pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection with a ping.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Info().
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Bootstrap creates the schema if it does not exist. Idempotent, run at
// startup before the HTTP surface comes up.
func (s *Store) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id             BIGSERIAL PRIMARY KEY,
			user_id        TEXT NOT NULL,
			title          TEXT NOT NULL,
			description    TEXT,
			completed      BOOLEAN NOT NULL DEFAULT FALSE,
			priority       TEXT NOT NULL DEFAULT 'medium',
			tags           JSONB NOT NULL DEFAULT '[]',
			due_date       TIMESTAMPTZ,
			reminder_time  TIMESTAMPTZ,
			recurring_rule JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_recurring ON tasks (user_id) WHERE recurring_rule IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id         BIGSERIAL PRIMARY KEY,
			task_id    BIGINT NOT NULL,
			user_id    TEXT NOT NULL,
			trigger_at TIMESTAMPTZ NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (trigger_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_task ON reminders (task_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}
