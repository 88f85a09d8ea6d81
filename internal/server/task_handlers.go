// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

// ============================================================================
// REQUEST TYPES
// ============================================================================

// optionalTime distinguishes an absent field from an explicit null.
// Accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (midnight UTC).
type optionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := parseDue(s)
	if err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, model.ValidationError{Field: "due_date", Message: "must be RFC 3339 or YYYY-MM-DD"}
	}
	return t, nil
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Priority       string       `json:"priority"`
	Status         string       `json:"status"`
	Tags           []string     `json:"tags"`
	DueDate        optionalTime `json:"due_date"`
	ConversationID string       `json:"conversation_id"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{id}. Absent fields are left alone;
// "due_date": null clears the due date.
type UpdateTaskRequest struct {
	Title          *string      `json:"title"`
	Description    *string      `json:"description"`
	Priority       *string      `json:"priority"`
	Status         *string      `json:"status"`
	Tags           *[]string    `json:"tags"`
	DueDate        optionalTime `json:"due_date"`
	ConversationID *string      `json:"conversation_id"`
}

// StatusRequest is the body of POST /api/tasks/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// ============================================================================
// TASK HANDLERS
// ============================================================================

// handleListTasks handles GET /api/tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	tasks, err := s.store.ListTasks(r.Context(), UserFromContext(r.Context()).ID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleCreateTask handles POST /api/tasks.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	user := UserFromContext(r.Context())

	task, err := model.NewTask(user.ID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	task.Description = req.Description
	task.SetTags(req.Tags)
	task.DueDate = req.DueDate.Value
	if req.Priority != "" {
		if task.Priority, err = model.ParsePriority(req.Priority); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.Status != "" {
		status, err := model.ParseStatus(req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := task.SetStatus(status); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if err := s.linkConversation(r.Context(), task, req.ConversationID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := s.store.CreateTask(r.Context(), task); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleGetTask handles GET /api/tasks/{id}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask handles PATCH /api/tasks/{id}.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	task, err := s.store.GetTask(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Tags != nil {
		task.SetTags(*req.Tags)
	}
	if req.DueDate.Set {
		task.DueDate = req.DueDate.Value
	}
	if req.Priority != nil {
		if task.Priority, err = model.ParsePriority(*req.Priority); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.Status != nil {
		status, err := model.ParseStatus(*req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := task.SetStatus(status); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if req.ConversationID != nil {
		if err := s.linkConversation(r.Context(), task, *req.ConversationID); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	task.Touch()

	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleSetTaskStatus handles POST /api/tasks/{id}/status.
func (s *Server) handleSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	task, err := s.store.GetTask(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := task.SetStatus(status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.store.UpdateTask(r.Context(), task); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask handles DELETE /api/tasks/{id}.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// HELPERS
// ============================================================================

// linkConversation attaches the task to one of its owner's conversations.
// An empty id unlinks.
func (s *Server) linkConversation(ctx context.Context, task *model.Task, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID != "" {
		_, err := s.store.GetConversation(ctx, task.UserID, conversationID)
		if errors.Is(err, storage.ErrNotFound) {
			return model.ValidationError{Field: "conversation_id", Message: "unknown conversation"}
		}
		if err != nil {
			return err
		}
	}
	task.ConversationID = conversationID
	return nil
}

// parseTaskFilter reads list filters from query parameters.
func parseTaskFilter(q url.Values) (storage.TaskFilter, error) {
	var (
		filter storage.TaskFilter
		errs   model.ValidationErrors
		err    error
	)

	if v := q.Get("status"); v != "" {
		if filter.Status, err = model.ParseStatus(v); err != nil {
			errs = append(errs, model.ValidationError{Field: "status", Message: "unknown status"})
		}
	}
	if v := q.Get("priority"); v != "" {
		if filter.Priority, err = model.ParsePriority(v); err != nil {
			errs = append(errs, model.ValidationError{Field: "priority", Message: "unknown priority"})
		}
	}
	filter.Tag = q.Get("tag")
	filter.Query = q.Get("q")
	if v := q.Get("overdue"); v != "" {
		if filter.Overdue, err = strconv.ParseBool(v); err != nil {
			errs = append(errs, model.ValidationError{Field: "overdue", Message: "must be true or false"})
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			errs = append(errs, model.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			errs = append(errs, model.ValidationError{Field: "offset", Message: "must be a non-negative integer"})
		}
	}

	if len(errs) > 0 {
		return filter, errs
	}
	return filter, nil
}
