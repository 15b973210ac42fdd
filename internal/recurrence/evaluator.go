// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package recurrence

import (
	"time"

	"github.com/todomesh/todomesh/internal/logging"
)

// fallbackInterval is used for frequencies the evaluator does not support
// (yearly, custom, anything unrecognized). The schedule keeps moving daily
// instead of stalling.
const fallbackInterval = 24 * time.Hour

// NextTrigger computes the next trigger time for a rule from the given
// reference time. A zero from defaults to now. The computation is
// deterministic and never fails: a nil rule returns ok=false, everything
// else returns a timestamp.
//
// Monthly arithmetic is approximated as 30-day blocks, not calendar months.
// That is a deliberate trade-off inherited from the rule schema, not a bug.
func NextTrigger(rule *Rule, from time.Time) (time.Time, bool) {
	if rule == nil {
		return time.Time{}, false
	}
	if from.IsZero() {
		from = time.Now().UTC()
	}

	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Frequency {
	case FrequencyDaily:
		return from.Add(time.Duration(interval) * 24 * time.Hour), true
	case FrequencyWeekly:
		return from.Add(time.Duration(interval) * 7 * 24 * time.Hour), true
	case FrequencyMonthly:
		return from.Add(time.Duration(interval) * 30 * 24 * time.Hour), true
	default:
		logging.Warn().
			Str("frequency", string(rule.Frequency)).
			Msg("Unsupported recurrence frequency, falling back to daily")
		return from.Add(fallbackInterval), true
	}
}
