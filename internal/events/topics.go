// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package events

// Topic names for the pub/sub transport. Delivery is at-least-once and
// unordered across topics; per-key ordering is not guaranteed either.
const (
	TopicTodo      = "todo.events"
	TopicReminder  = "reminder.events"
	TopicRecurring = "recurring.events"
	TopicAI        = "ai.events"
	TopicAudit     = "audit.events"
)

// DeadLetterSuffix is appended to a topic name for its poison-message queue.
const DeadLetterSuffix = ".deadletter"

// DeadLetterTopic returns the dead-letter topic for a source topic.
func DeadLetterTopic(topic string) string {
	return topic + DeadLetterSuffix
}
