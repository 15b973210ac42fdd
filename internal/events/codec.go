// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Decode unwraps a transport body into an envelope. Bodies arrive either as
// a bare envelope object or wrapped CloudEvents-style under a "data" field;
// both shapes are accepted. Missing envelope fields decode to zero values and
// surface downstream as "unknown"/defaults, not as decode errors.
//
// Malformed JSON is the only error case and is handled by the dispatch layer,
// which logs and acknowledges rather than triggering redelivery.
func Decode(raw []byte) (*Envelope, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	body := raw
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode event body: %w", err)
	}
	if len(wrapper.Data) > 0 {
		body = wrapper.Data
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	return &env, nil
}
