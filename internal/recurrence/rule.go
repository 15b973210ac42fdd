// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package recurrence implements the pure rule evaluator: recurrence rule in,
// next trigger timestamp out. No I/O, no side effects beyond a warning log
// for unsupported frequencies.
package recurrence

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Frequency identifies how a recurrence interval is measured.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom"
)

// Rule is the recurrence configuration embedded as JSON on a task.
//
// DayOfWeek and DayOfMonth are accepted and range-checked at the boundary
// but not consumed by the evaluator; they are advisory hints carried for a
// future calendar-aware evaluator. CronExpression is only meaningful for
// the custom frequency, which the evaluator does not yet support.
type Rule struct {
	Frequency      Frequency `json:"frequency"`
	Interval       int       `json:"interval,omitempty"`
	DayOfWeek      *int      `json:"day_of_week,omitempty"`
	DayOfMonth     *int      `json:"day_of_month,omitempty"`
	CronExpression string    `json:"cron_expression,omitempty"`
}

// ErrInvalidRule wraps boundary validation failures for recurrence rules.
type ErrInvalidRule struct {
	Field  string
	Reason string
}

func (e *ErrInvalidRule) Error() string {
	return fmt.Sprintf("invalid recurrence rule: %s %s", e.Field, e.Reason)
}

// knownFrequencies lists every frequency accepted at the boundary, including
// the ones the evaluator degrades to its 1-day fallback for.
var knownFrequencies = map[Frequency]bool{
	FrequencyDaily:   true,
	FrequencyWeekly:  true,
	FrequencyMonthly: true,
	FrequencyYearly:  true,
	FrequencyCustom:  true,
}

// Validate checks a rule where it is set (API update or tool call), not on
// every evaluation. Interval values below 1 normalize to the default rather
// than erroring, matching the rule schema's documented default.
func (r *Rule) Validate() error {
	if r.Frequency == "" {
		return &ErrInvalidRule{Field: "frequency", Reason: "is required"}
	}
	if !knownFrequencies[r.Frequency] {
		return &ErrInvalidRule{Field: "frequency", Reason: fmt.Sprintf("%q is not recognized", r.Frequency)}
	}
	if r.Interval < 1 {
		r.Interval = 1
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return &ErrInvalidRule{Field: "day_of_week", Reason: "must be 0-6"}
	}
	if r.DayOfMonth != nil && (*r.DayOfMonth < 1 || *r.DayOfMonth > 31) {
		return &ErrInvalidRule{Field: "day_of_month", Reason: "must be 1-31"}
	}
	if r.Frequency == FrequencyCustom && r.CronExpression == "" {
		return &ErrInvalidRule{Field: "cron_expression", Reason: "is required for custom frequency"}
	}
	return nil
}

// ParseRule decodes a rule from its embedded JSON form. A nil or empty
// document yields a nil rule, which callers treat as "no recurrence".
func ParseRule(raw []byte) (*Rule, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse recurrence rule: %w", err)
	}
	return &r, nil
}

// FromPayload builds a rule from a decoded event payload value. Event
// payloads carry the rule as a nested JSON object; nil and non-object
// values mean no rule.
func FromPayload(v any) *Rule {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var r Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil
	}
	if r.Frequency == "" {
		return nil
	}
	return &r
}
