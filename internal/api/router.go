// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/todomesh/todomesh/internal/middleware"
)

// RouterConfig holds the HTTP-surface knobs the router needs.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// Router assembles the full API route tree: per-user task routes
// behind auth, admin audit reads behind the service token, health
// probes, Prometheus metrics, and an optional WebSocket feed.
func (s *Server) Router(auth *Auth, cfg RouterConfig, ws http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Prometheus)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/{user_id}", func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Post("/", s.handleCreateTask)

				r.Route("/{task_id}", func(r chi.Router) {
					r.Get("/", s.handleGetTask)
					r.Put("/", s.handleUpdateTask)
					r.Delete("/", s.handleDeleteTask)
					r.Post("/toggle", s.handleToggleTask)
					r.Patch("/complete", s.handleCompleteTask)
					r.Post("/reminder", s.handleCreateReminder)
					r.Delete("/reminder", s.handleCancelReminders)
				})
			})

			r.Get("/reminders", s.handleListReminders)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireService)
			r.Mount("/", s.AuditRoutes())
		})
	})

	return r
}

// AuditRoutes returns just the audit read endpoints. The consumer
// process with the audit role mounts these next to its event routes,
// since it is the process that owns the audit database.
func (s *Server) AuditRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/audit", s.handleAuditQuery)
	r.Get("/audit/stats", s.handleAuditStats)
	return r
}
