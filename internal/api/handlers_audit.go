// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/todomesh/todomesh/internal/audit"
)

// maxAuditLimit caps the page size on audit queries.
const maxAuditLimit = 1000

// handleAuditQuery returns audit records matching the query filters.
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if s.audit == nil {
		rw.NotFound("audit trail not enabled")
		return
	}

	filter, err := auditFilterFromQuery(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	records, err := s.audit.Query(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithCount(records, len(records))
}

// handleAuditStats returns the total record count and per-action counts.
func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if s.audit == nil {
		rw.NotFound("audit trail not enabled")
		return
	}

	total, err := s.audit.Count(r.Context(), audit.QueryFilter{})
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	byAction, err := s.audit.CountByAction(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(map[string]any{
		"total":     total,
		"by_action": byAction,
	})
}

func auditFilterFromQuery(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()
	filter.UserID = q.Get("user_id")
	filter.Action = q.Get("action")
	filter.EntityType = q.Get("entity_type")

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		if limit > maxAuditLimit {
			limit = maxAuditLimit
		}
		filter.Limit = limit
	}

	for param, dst := range map[string]**time.Time{
		"since": &filter.Since,
		"until": &filter.Until,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New(param + " must be an RFC 3339 timestamp")
		}
		*dst = &t
	}

	return filter, nil
}
