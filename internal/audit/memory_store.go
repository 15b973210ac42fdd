// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded in-memory Store for tests and for running the
// audit consumer without a database path configured. Oldest records are
// evicted when the cap is reached.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
	maxLen  int
}

func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{maxLen: maxLen, nextID: 1}
}

func (s *MemoryStore) CreateTable(_ context.Context) error { return nil }

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	r.ID = s.nextID
	r.CreatedAt = time.Now().UTC()
	s.nextID++

	s.records = append(s.records, r)
	if len(s.records) > s.maxLen {
		s.records = s.records[len(s.records)-s.maxLen:]
	}
	return nil
}

func (s *MemoryStore) matches(r *Record, f *QueryFilter) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.EntityType != "" && r.EntityType != f.EntityType {
		return false
	}
	if f.Since != nil && r.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && r.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.matches(&s.records[i], &filter) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.records {
		if s.matches(&s.records[i], &filter) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountByAction(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int64)
	for i := range s.records {
		result[s.records[i].Action]++
	}
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for i := range s.records {
		if s.records[i].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.records[i])
	}
	s.records = kept
	return deleted, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
