// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package dispatch

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/todomesh/todomesh/internal/logging"
)

// PubSubName is the logical pub/sub component name advertised to sidecar
// style delivery agents.
const PubSubName = "pubsub"

// Subscription is one advertised topic subscription.
type Subscription struct {
	PubSubName string `json:"pubsubname"`
	Topic      string `json:"topic"`
	Route      string `json:"route"`
}

// statusSuccess is the body every event delivery gets back. Returning an
// error status would make the delivery agent redeliver forever; poison
// handling happens inside Dispatch instead.
var statusSuccess = []byte(`{"status":"SUCCESS"}`)

// Routes mounts the HTTP event surface: one POST route per subscribed
// topic, the subscription discovery endpoint, the scheduled check hook, and
// health probes.
func (d *Dispatcher) Routes() chi.Router {
	r := chi.NewRouter()

	for _, topic := range d.Topics() {
		topic := topic
		r.Post("/events/"+ShortTopic(topic), d.eventHandler(topic))
	}

	r.Get("/dapr/subscribe", d.handleSubscribe)
	r.Post("/cron-reminder-check", d.handleTick)
	r.Get("/health", handleHealth)
	r.Get("/healthz", handleHealth)

	return r
}

func (d *Dispatcher) eventHandler(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			logging.Warn().Err(err).Str("topic", topic).Msg("Failed to read event body")
		} else {
			// Decode failures are already counted and logged inside Dispatch;
			// the delivery still succeeds from the sender's point of view.
			_ = d.Dispatch(r.Context(), topic, body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(statusSuccess)
	}
}

func (d *Dispatcher) handleSubscribe(w http.ResponseWriter, _ *http.Request) {
	subs := make([]Subscription, 0)
	for _, topic := range d.Topics() {
		subs = append(subs, Subscription{
			PubSubName: PubSubName,
			Topic:      topic,
			Route:      "/events/" + ShortTopic(topic),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subs); err != nil {
		logging.Warn().Err(err).Msg("Failed to encode subscription list")
	}
}

func (d *Dispatcher) handleTick(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	handled := d.Tick(r.Context())

	logging.Info().
		Int("handled", handled).
		Dur("duration", time.Since(start)).
		Msg("Scheduled check ran")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "SUCCESS",
		"handled": handled,
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
