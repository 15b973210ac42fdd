// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package metrics holds the Prometheus instrumentation for both binaries:
// event pipeline counters, scheduler sweep timings, reminder firing, audit
// writes, and HTTP surface latency. All collectors register through promauto
// at package load.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events received from the bus",
		},
		[]string{"topic"},
	)

	EventsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_deduplicated_total",
			Help: "Total number of events skipped as idempotency-key duplicates",
		},
		[]string{"topic"},
	)

	EventsParseFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_parse_failed_total",
			Help: "Total number of event bodies that failed envelope decoding",
		},
		[]string{"topic"},
	)

	EventHandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_handler_errors_total",
			Help: "Total number of domain handler failures (event still acked)",
		},
		[]string{"topic", "event_type"},
	)

	EventHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_handler_duration_seconds",
			Help:    "Domain handler execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic", "event_type"},
	)

	OutboxDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_dropped_total",
			Help: "Total number of events dropped because the outbox queue was full",
		},
	)

	OutboxQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_queue_depth",
			Help: "Current number of events waiting in the outbox queue",
		},
	)

	// Recurrence scheduler
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recurrence_sweep_duration_seconds",
			Help:    "Duration of recurrence schedule sweeps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	SweepDueTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recurrence_due_tasks_total",
			Help: "Total number of recurring tasks found due across all sweeps",
		},
	)

	SweepsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recurrence_sweeps_skipped_total",
			Help: "Total number of sweeps skipped because a sweep was already running",
		},
	)

	ScheduleSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recurrence_schedule_entries",
			Help: "Current number of tasks in the recurrence schedule",
		},
	)

	SpawnRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawn_requests_total",
			Help: "Total number of spawned task instance requests",
		},
		[]string{"outcome"}, // "success", "error", "breaker_open", "rate_limited"
	)

	// Reminders
	RemindersFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_fired_total",
			Help: "Total number of reminders transitioned pending to triggered",
		},
	)

	ReminderCheckErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_check_errors_total",
			Help: "Total number of failed due-reminder checks",
		},
	)

	// Audit trail
	AuditWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Total number of audit records written",
		},
		[]string{"action"},
	)

	AuditWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_errors_total",
			Help: "Total number of failed audit record writes",
		},
	)

	// HTTP surfaces
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Notification live feed
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of live-feed WebSocket connections",
		},
	)

	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications delivered to the live feed",
		},
	)
)

// RecordEventConsumed bumps the consume counter for a topic.
func RecordEventConsumed(topic string) {
	EventsConsumed.WithLabelValues(topic).Inc()
}

// RecordHandlerResult records one dispatch outcome: duration always, the
// error counter only on failure.
func RecordHandlerResult(topic, eventType string, duration time.Duration, err error) {
	EventHandlerDuration.WithLabelValues(topic, eventType).Observe(duration.Seconds())
	if err != nil {
		EventHandlerErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSweep records one completed schedule sweep.
func RecordSweep(duration time.Duration, due int) {
	SweepDuration.Observe(duration.Seconds())
	SweepDueTasks.Add(float64(due))
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
