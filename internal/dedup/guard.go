// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package dedup tracks processed idempotency keys so consumers can collapse
// at-least-once delivery into at-most-once side effects.
//
// Three backends cover the deployment spectrum:
//
//   - MemoryGuard: unbounded in-process set. Lost on restart, which means
//     events redelivered after a restart are reprocessed. Default.
//   - WindowGuard: LRU+TTL bounded set for long-lived processes where
//     unbounded growth is unacceptable; keys older than the window are
//     forgotten and may reprocess.
//   - BadgerGuard: durable on-disk set with TTL; survives restarts.
package dedup

import (
	"sync"
	"time"

	"github.com/todomesh/todomesh/internal/cache"
)

// Guard tracks processed event keys and rejects duplicates.
//
// An empty key means "no dedup possible": IsDuplicate returns false and
// MarkProcessed is a no-op, so the caller always processes such events.
// Check and mark are deliberately separate calls: the dispatch layer marks
// only after the domain operation completes, accepting the narrow race of
// two concurrent deliveries of one key over the risk of marking an event
// whose effect was then lost.
type Guard interface {
	// IsDuplicate reports whether the key has already been processed.
	IsDuplicate(key string) bool

	// MarkProcessed records the key as handled.
	MarkProcessed(key string)
}

// MemoryGuard is a mutex-protected unbounded key set. It grows for the
// process lifetime and resets on restart.
type MemoryGuard struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryGuard creates an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: make(map[string]struct{})}
}

// IsDuplicate implements Guard.
func (g *MemoryGuard) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, seen := g.keys[key]
	return seen
}

// MarkProcessed implements Guard.
func (g *MemoryGuard) MarkProcessed(key string) {
	if key == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = struct{}{}
}

// Len returns the number of tracked keys, exposed for metrics.
func (g *MemoryGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.keys)
}

// WindowGuard bounds the tracked set with an LRU and a TTL window. Keys
// outside the window are forgotten; a redelivery that arrives later than
// the window reprocesses.
type WindowGuard struct {
	lru *cache.LRU
}

// NewWindowGuard creates a guard remembering at most capacity keys for ttl.
func NewWindowGuard(capacity int, ttl time.Duration) *WindowGuard {
	return &WindowGuard{lru: cache.NewLRU(capacity, ttl)}
}

// IsDuplicate implements Guard.
func (g *WindowGuard) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	return g.lru.Contains(key)
}

// MarkProcessed implements Guard.
func (g *WindowGuard) MarkProcessed(key string) {
	if key == "" {
		return
	}
	g.lru.Add(key, time.Now())
}

// Len returns the number of tracked keys.
func (g *WindowGuard) Len() int {
	return g.lru.Len()
}
