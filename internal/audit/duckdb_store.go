// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DuckDBStore implements Store on an embedded DuckDB database. Durable and
// queryable in place, which is all the audit trail needs.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore wraps an open DuckDB handle. The caller runs CreateTable
// before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_records table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE SEQUENCE IF NOT EXISTS audit_records_seq;
		CREATE TABLE IF NOT EXISTS audit_records (
			id BIGINT PRIMARY KEY DEFAULT nextval('audit_records_seq'),
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			details JSON,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_records(user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_records(action);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit_records table: %w", err)
	}
	return nil
}

// Save writes one record. The record's ID is not read back; audit writes are
// fire-and-forget from the caller's perspective.
func (s *DuckDBStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("cannot save nil audit record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var details *string
	if len(record.Details) > 0 {
		d := string(record.Details)
		details = &d
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_records (action, entity_type, entity_id, user_id, timestamp, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.Action, record.EntityType, record.EntityID, record.UserID, record.Timestamp, details,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

func (s *DuckDBStore) buildFilterConditions(filter QueryFilter) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.Until)
	}
	return conditions, args
}

func (s *DuckDBStore) buildQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	query := `SELECT id, action, entity_type, entity_id, user_id, timestamp, details, created_at FROM audit_records`
	if countOnly {
		query = `SELECT COUNT(*) FROM audit_records`
	}

	conditions, args := s.buildFilterConditions(filter)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if !countOnly {
		query += " ORDER BY timestamp DESC"
		limit := filter.Limit
		if limit <= 0 {
			limit = 100
		}
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, args
}

// Query returns matching records, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var details sql.NullString
		if err := rows.Scan(&r.ID, &r.Action, &r.EntityType, &r.EntityID, &r.UserID,
			&r.Timestamp, &details, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if details.Valid {
			r.Details = []byte(details.String)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// CountByAction returns record counts grouped by action.
func (s *DuckDBStore) CountByAction(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int64)
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM audit_records GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("failed to get action counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err == nil {
			result[action] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating action counts: %w", err)
	}
	return result, nil
}

// Delete removes records older than the cutoff. Used by the retention
// cleanup routine.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit records: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return deleted, nil
}
