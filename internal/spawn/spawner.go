// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package spawn creates new task instances from recurring templates by
// calling the backend API. The client is wrapped in a circuit breaker and a
// rate limiter so a struggling backend degrades sweeps instead of the sweeps
// hammering the backend.
package spawn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/todomesh/todomesh/internal/logging"
	"github.com/todomesh/todomesh/internal/metrics"
	"github.com/todomesh/todomesh/internal/store"
)

// Config holds spawner client settings.
type Config struct {
	BackendURL     string
	ServiceToken   string
	RequestTimeout time.Duration
	RatePerSecond  float64
	RateBurst      int

	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

// DefaultConfig returns production defaults. BackendURL stays empty; without
// it the caller should fall back to the logging spawner.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:          10 * time.Second,
		RatePerSecond:           5,
		RateBurst:               10,
		BreakerMaxRequests:      3,
		BreakerInterval:         time.Minute,
		BreakerTimeout:          30 * time.Second,
		BreakerFailureThreshold: 5,
	}
}

// HTTPSpawner posts new task instances to the backend task API.
type HTTPSpawner struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter
}

func NewHTTPSpawner(cfg Config) *HTTPSpawner {
	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "spawn-backend",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Spawn circuit breaker state change")
		},
	})

	return &HTTPSpawner{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

// spawnRequest is the task creation body sent to the backend. The spawned
// instance inherits the template's attributes but not its recurrence rule;
// the template itself stays the single scheduled entity.
type spawnRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Spawn creates one new instance of the template via the backend API.
func (s *HTTPSpawner) Spawn(ctx context.Context, template *store.Task) error {
	if !s.limiter.Allow() {
		metrics.SpawnRequests.WithLabelValues("rate_limited").Inc()
		return fmt.Errorf("spawn rate limit exceeded for task %d", template.ID)
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, template)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.SpawnRequests.WithLabelValues("breaker_open").Inc()
		} else {
			metrics.SpawnRequests.WithLabelValues("error").Inc()
		}
		return err
	}

	metrics.SpawnRequests.WithLabelValues("success").Inc()
	return nil
}

func (s *HTTPSpawner) post(ctx context.Context, template *store.Task) error {
	body, err := json.Marshal(spawnRequest{
		Title:       template.Title,
		Description: template.Description,
		Priority:    template.Priority,
		Tags:        template.Tags,
		DueDate:     template.DueDate,
	})
	if err != nil {
		return fmt.Errorf("marshal spawn request: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s/tasks", s.cfg.BackendURL, template.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build spawn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ServiceToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.ServiceToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("spawn request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("spawn request returned %d", resp.StatusCode)
	}

	logging.Info().
		Int64("template_id", template.ID).
		Str("user_id", template.UserID).
		Str("title", template.Title).
		Msg("Recurring task instance spawned")
	return nil
}

// LogSpawner only logs would-be spawns. Used when no backend URL is
// configured, mirroring a deployment where instance creation is handled
// elsewhere.
type LogSpawner struct{}

func (LogSpawner) Spawn(_ context.Context, template *store.Task) error {
	metrics.SpawnRequests.WithLabelValues("success").Inc()
	logging.Info().
		Int64("template_id", template.ID).
		Str("user_id", template.UserID).
		Str("title", template.Title).
		Msg("Recurring task due")
	return nil
}
