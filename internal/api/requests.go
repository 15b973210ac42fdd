// Todomesh - Event-Driven Todo Platform
// Copyright 2026 Todomesh Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/todomesh/todomesh

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/todomesh/todomesh/internal/store"
)

// validate is the shared validator instance. It is safe for concurrent
// use and caches struct metadata, so one instance serves all handlers.
var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateTaskRequest is the body for POST /api/{user_id}/tasks.
type CreateTaskRequest struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=1000"`
	Priority      string         `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Tags          []string       `json:"tags" validate:"omitempty,dive,max=50"`
	DueDate       *time.Time     `json:"due_date"`
	ReminderTime  *time.Time     `json:"reminder_time"`
	RecurringRule map[string]any `json:"recurring_rule"`
}

// UpdateTaskRequest is the body for PUT /api/{user_id}/tasks/{task_id}.
// Pointer fields distinguish "leave unchanged" from "set to zero value".
type UpdateTaskRequest struct {
	Title         *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=1000"`
	Completed     *bool          `json:"completed"`
	Priority      *string        `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Tags          []string       `json:"tags" validate:"omitempty,dive,max=50"`
	DueDate       *time.Time     `json:"due_date"`
	ReminderTime  *time.Time     `json:"reminder_time"`
	RecurringRule map[string]any `json:"recurring_rule"`
	ClearRule     bool           `json:"clear_recurring_rule"`
}

// CreateReminderRequest is the body for POST .../tasks/{task_id}/reminder.
type CreateReminderRequest struct {
	TriggerAt time.Time `json:"trigger_at" validate:"required"`
}

// Apply merges the update into an existing task.
func (req *UpdateTaskRequest) Apply(t *store.Task) {
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Tags != nil {
		t.Tags = req.Tags
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.ReminderTime != nil {
		t.ReminderTime = req.ReminderTime
	}
	if req.ClearRule {
		t.RecurringRule = nil
	} else if req.RecurringRule != nil {
		t.RecurringRule = req.RecurringRule
	}
}

// fieldError is the per-field detail attached to validation failures.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Error string `json:"error"`
}

// decodeAndValidate decodes the JSON body into dst and validates it.
// On failure it writes the error response and returns false.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]fieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fieldError{
					Field: fe.Field(),
					Rule:  fe.Tag(),
					Error: describeFieldError(fe),
				})
			}
			rw.ValidationError("request validation failed", details)
			return false
		}
		rw.BadRequest("invalid request: " + err.Error())
		return false
	}

	return true
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
