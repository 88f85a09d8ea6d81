// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jeranaias/zaura/internal/export"
	"github.com/jeranaias/zaura/internal/model"
)

// ============================================================================
// REQUEST TYPES
// ============================================================================

// MessageRequest is one message in a create or append request.
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toMessage builds a message, defaulting the role to user.
func (m MessageRequest) toMessage() (*model.Message, error) {
	role := model.Role(strings.ToLower(strings.TrimSpace(m.Role)))
	if role == "" {
		role = model.RoleUser
	}
	msg := model.NewMessage(role, m.Content)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title    string           `json:"title"`
	Messages []MessageRequest `json:"messages"`
}

// RenameRequest is the body of PATCH /api/conversations/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

// handleListConversations handles GET /api/conversations (optional ?q= and ?limit=).
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := UserFromContext(r.Context()).ID
	q := r.URL.Query()

	var (
		metas []model.ConversationMeta
		err   error
	)
	if query := strings.TrimSpace(q.Get("q")); query != "" {
		metas, err = s.store.SearchConversations(r.Context(), userID, query)
	} else {
		limit := 0
		if v := q.Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
				writeServiceError(w, r, model.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
				return
			}
		}
		metas, err = s.store.ListConversations(r.Context(), userID, limit)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": metas,
		"count":         len(metas),
	})
}

// handleCreateConversation handles POST /api/conversations.
func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	conv := model.NewConversation(UserFromContext(r.Context()).ID)
	if err := conv.SetTitle(req.Title); err != nil {
		writeServiceError(w, r, err)
		return
	}
	for _, m := range req.Messages {
		msg, err := m.toMessage()
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		conv.AddMessage(msg)
	}

	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// handleGetConversation handles GET /api/conversations/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.GetConversation(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleRenameConversation handles PATCH /api/conversations/{id}.
func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	userID := UserFromContext(r.Context()).ID
	id := r.PathValue("id")
	if err := s.store.RenameConversation(r.Context(), userID, id, req.Title); err != nil {
		writeServiceError(w, r, err)
		return
	}

	conv, err := s.store.GetConversation(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv.Meta())
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConversation(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAppendMessage handles POST /api/conversations/{id}/messages.
func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	msg, err := req.toMessage()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := s.store.AppendMessage(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"), msg); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleExportConversation handles GET /api/conversations/{id}/export?format=markdown|json|html.
func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.ForFormat(r.URL.Query().Get("format"), export.DefaultOptions())
	if errors.Is(err, export.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, "unsupported export format")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), UserFromContext(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	content, err := exporter.Export(conv)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", exporter.MimeType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(conv, exporter, s.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
