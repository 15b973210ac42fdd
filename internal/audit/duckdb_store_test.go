// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

//go:build integration

package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory DuckDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupStore(t *testing.T) *DuckDBStore {
	t.Helper()

	store := NewDuckDBStore(setupTestDB(t))
	if err := store.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	return store
}

func testRecord(action string, ts time.Time) *Record {
	return &Record{
		Action:     action,
		EntityType: "task",
		EntityID:   "1",
		UserID:     "user-1",
		Timestamp:  ts,
		Details:    []byte(`{"title":"buy milk"}`),
	}
}

func TestDuckDBStore_CreateTable(t *testing.T) {
	store := setupStore(t)

	// Idempotent
	if err := store.CreateTable(context.Background()); err != nil {
		t.Errorf("CreateTable should be idempotent: %v", err)
	}
}

func TestDuckDBStore_SaveAndQuery(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Save(ctx, testRecord("task_created", now)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.Query(ctx, QueryFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != "task_created" || records[0].EntityType != "task" {
		t.Errorf("unexpected record: %+v", records[0])
	}
	if len(records[0].Details) == 0 {
		t.Error("details should round-trip")
	}
}

func TestDuckDBStore_SaveNilRecord(t *testing.T) {
	store := setupStore(t)
	if err := store.Save(context.Background(), nil); err == nil {
		t.Error("saving a nil record should fail")
	}
}

func TestDuckDBStore_QueryOrderingAndLimit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		store.Save(ctx, testRecord("task_updated", base.Add(time.Duration(i)*time.Hour)))
	}

	records, err := store.Query(ctx, QueryFilter{Limit: 3})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.After(records[i-1].Timestamp) {
			t.Error("records should be newest first")
		}
	}
}

func TestDuckDBStore_CountByAction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	store.Save(ctx, testRecord("task_created", now))
	store.Save(ctx, testRecord("task_created", now))
	store.Save(ctx, testRecord("task_deleted", now))

	counts, err := store.CountByAction(ctx)
	if err != nil {
		t.Fatalf("CountByAction failed: %v", err)
	}
	if counts["task_created"] != 2 || counts["task_deleted"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestDuckDBStore_Delete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Now().UTC()
	store.Save(ctx, testRecord("task_created", old))
	store.Save(ctx, testRecord("task_created", recent))

	deleted, err := store.Delete(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	count, _ := store.Count(ctx, QueryFilter{})
	if count != 1 {
		t.Errorf("expected 1 remaining, got %d", count)
	}
}
