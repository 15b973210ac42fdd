// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

// Package middleware provides HTTP middleware shared by the API server
// and the consumer event endpoints.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/todomesh/todomesh/internal/logging"
)

// RequestID assigns a unique ID to each request and carries it in both
// the response header and the request context. An ID supplied by an
// upstream proxy via X-Request-ID is reused.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
