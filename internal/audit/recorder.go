// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package audit

import (
	"context"
	"time"

	"github.com/todomesh/todomesh/internal/events"
	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
)

// Recorder turns event envelopes into audit rows. Dedup happens upstream in
// the dispatcher, so every call that reaches Record is a fresh event.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record derives and saves the audit row for an envelope.
func (r *Recorder) Record(ctx context.Context, env *events.Envelope) error {
	record := FromEnvelope(env)
	if err := r.store.Save(ctx, record); err != nil {
		metrics.AuditWriteErrors.Inc()
		return err
	}

	metrics.AuditWrites.WithLabelValues(record.Action).Inc()
	logging.Info().
		Str("action", record.Action).
		Str("entity_type", record.EntityType).
		Str("entity_id", record.EntityID).
		Str("user_id", record.UserID).
		Msg("Audit record written")
	return nil
}

// StartCleanupRoutine deletes records older than the retention window once a
// day until the context is cancelled.
func (r *Recorder) StartCleanupRoutine(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				deleted, err := r.store.Delete(ctx, cutoff)
				if err != nil {
					logging.Warn().Err(err).Msg("Audit retention cleanup failed")
					continue
				}
				if deleted > 0 {
					logging.Info().Int64("deleted", deleted).Msg("Audit retention cleanup")
				}
			}
		}
	}()
}
