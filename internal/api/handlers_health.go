// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"context"
	"net/http"
	"time"
)

// handleLiveness always reports healthy while the process is serving.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "healthy"})
}

// handleReadiness checks downstream dependencies with a short timeout
// so a wedged database cannot hang the probe.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeInternalError,
				"dependency check failed", err.Error())
			return
		}
	}

	rw.Success(map[string]string{"status": "ready"})
}
