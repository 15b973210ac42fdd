// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package services

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/todomesh/todomesh/internal/logging"
)

// TickService drives periodic work from an in-process timer: the
// recurrence sweep and the reminder due-check. A small startup jitter
// keeps replicas from sweeping in lockstep.
type TickService struct {
	interval time.Duration
	fn       func(ctx context.Context)
	name     string
}

// NewTickService creates a tick loop running fn every interval.
func NewTickService(name string, interval time.Duration, fn func(ctx context.Context)) *TickService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TickService{
		interval: interval,
		fn:       fn,
		name:     name,
	}
}

// Serve implements suture.Service.
func (s *TickService) Serve(ctx context.Context) error {
	if jitter := int64(s.interval) / 10; jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(jitter))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logging.Info().
		Str("service", s.name).
		Dur("interval", s.interval).
		Msg("Tick loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *TickService) String() string {
	return s.name
}
