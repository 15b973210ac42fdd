// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEventConsumed(t *testing.T) {
	before := testutil.ToFloat64(EventsConsumed.WithLabelValues("todo.events"))
	RecordEventConsumed("todo.events")
	after := testutil.ToFloat64(EventsConsumed.WithLabelValues("todo.events"))

	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestRecordHandlerResult(t *testing.T) {
	errBefore := testutil.ToFloat64(EventHandlerErrors.WithLabelValues("todo.events", "task_created"))

	RecordHandlerResult("todo.events", "task_created", 5*time.Millisecond, nil)
	if got := testutil.ToFloat64(EventHandlerErrors.WithLabelValues("todo.events", "task_created")); got != errBefore {
		t.Errorf("nil error must not bump the error counter, got %f", got)
	}

	RecordHandlerResult("todo.events", "task_created", 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(EventHandlerErrors.WithLabelValues("todo.events", "task_created")); got != errBefore+1 {
		t.Errorf("expected error counter %f, got %f", errBefore+1, got)
	}
}

func TestRecordSweep(t *testing.T) {
	before := testutil.ToFloat64(SweepDueTasks)
	RecordSweep(10*time.Millisecond, 3)
	after := testutil.ToFloat64(SweepDueTasks)

	if after != before+3 {
		t.Errorf("expected due counter to grow by 3, got %f -> %f", before, after)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tasks", "200"))
	RecordAPIRequest("GET", "/api/tasks", "200", 20*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tasks", "200"))

	if after != before+1 {
		t.Errorf("expected request counter to increment, got %f -> %f", before, after)
	}
}

func TestGaugeMovement(t *testing.T) {
	OutboxQueueDepth.Set(7)
	if got := testutil.ToFloat64(OutboxQueueDepth); got != 7 {
		t.Errorf("expected queue depth 7, got %f", got)
	}
	OutboxQueueDepth.Set(0)

	ScheduleSize.Set(12)
	if got := testutil.ToFloat64(ScheduleSize); got != 12 {
		t.Errorf("expected schedule size 12, got %f", got)
	}
	ScheduleSize.Set(0)
}
