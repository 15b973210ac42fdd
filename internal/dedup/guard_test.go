// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()

	if g.IsDuplicate("key-1") {
		t.Error("unseen key must not be a duplicate")
	}
	g.MarkProcessed("key-1")
	if !g.IsDuplicate("key-1") {
		t.Error("marked key must be a duplicate")
	}
	if g.IsDuplicate("key-2") {
		t.Error("different key must not be a duplicate")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestMemoryGuardEmptyKey(t *testing.T) {
	g := NewMemoryGuard()

	// Empty keys mean "no dedup possible": never a duplicate, never recorded.
	if g.IsDuplicate("") {
		t.Error("empty key must never be a duplicate")
	}
	g.MarkProcessed("")
	if g.IsDuplicate("") {
		t.Error("empty key must never be a duplicate even after marking")
	}
	if g.Len() != 0 {
		t.Errorf("empty key should not be recorded, Len() = %d", g.Len())
	}
}

func TestMemoryGuardConcurrent(t *testing.T) {
	g := NewMemoryGuard()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				g.MarkProcessed(key)
				if !g.IsDuplicate(key) {
					t.Errorf("key %q lost after mark", key)
				}
			}
		}(w)
	}
	wg.Wait()

	if g.Len() != 8*500 {
		t.Errorf("Len() = %d, want %d", g.Len(), 8*500)
	}
}

func TestWindowGuard(t *testing.T) {
	g := NewWindowGuard(100, time.Minute)

	g.MarkProcessed("key-1")
	if !g.IsDuplicate("key-1") {
		t.Error("marked key must be a duplicate inside the window")
	}
	if g.IsDuplicate("") {
		t.Error("empty key must never be a duplicate")
	}
}

func TestWindowGuardExpiry(t *testing.T) {
	g := NewWindowGuard(100, 10*time.Millisecond)

	g.MarkProcessed("key-1")
	time.Sleep(20 * time.Millisecond)

	if g.IsDuplicate("key-1") {
		t.Error("key outside the window should be forgotten")
	}
}

func TestBadgerGuardPersists(t *testing.T) {
	dir := t.TempDir()

	g, err := NewBadgerGuard(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerGuard: %v", err)
	}

	g.MarkProcessed("key-1")
	if !g.IsDuplicate("key-1") {
		t.Error("marked key must be a duplicate")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the key must survive the restart.
	g2, err := NewBadgerGuard(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerGuard reopen: %v", err)
	}
	defer g2.Close()

	if !g2.IsDuplicate("key-1") {
		t.Error("key must survive a restart of the durable guard")
	}
	if g2.IsDuplicate("key-2") {
		t.Error("unseen key must not be a duplicate")
	}
}

func TestBadgerGuardEmptyKey(t *testing.T) {
	g, err := NewBadgerGuard(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewBadgerGuard: %v", err)
	}
	defer g.Close()

	g.MarkProcessed("")
	if g.IsDuplicate("") {
		t.Error("empty key must never be a duplicate")
	}
}
