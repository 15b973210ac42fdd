// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package dedup

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/todomesh/todomesh/internal/logging"
)

// BadgerGuard persists processed keys to disk so deduplication survives
// process restarts. Entries carry a TTL; a redelivery later than the TTL
// reprocesses, which callers accept the same way they accept the
// in-memory guard's restart amnesia.
//
// Store errors degrade open: a failed read reports "not a duplicate" and a
// failed write is logged, because losing one event's effect to a poison
// loop is worse than the occasional double-processed event.
type BadgerGuard struct {
	db  *badger.DB
	ttl time.Duration
}

var processedMarker = []byte{1}

// NewBadgerGuard opens (or creates) the key store at dir.
func NewBadgerGuard(dir string, ttl time.Duration) (*BadgerGuard, error) {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy; errors surface via return values
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}

	return &BadgerGuard{db: db, ttl: ttl}, nil
}

// IsDuplicate implements Guard.
func (g *BadgerGuard) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}

	err := g.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err == nil {
		return true
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		logging.Warn().Err(err).Str("key", key).Msg("Dedup store read failed, treating as new")
	}
	return false
}

// MarkProcessed implements Guard.
func (g *BadgerGuard) MarkProcessed(key string) {
	if key == "" {
		return
	}

	err := g.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), processedMarker).WithTTL(g.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Dedup store write failed")
	}
}

// Close releases the underlying store.
func (g *BadgerGuard) Close() error {
	return g.db.Close()
}
