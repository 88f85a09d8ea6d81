// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/util"
)

// previewLength is the rune length of list previews.
const previewLength = 100

const messageColumns = `id, conversation_id, role, content, token_count, created_at`

// metaQuery selects ConversationMeta rows; callers append WHERE/ORDER.
const metaQuery = `
	SELECT c.id, c.title, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count,
		COALESCE((SELECT m.content FROM messages m
			WHERE m.conversation_id = c.id AND m.role = 'user'
			ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1), '') AS preview
	FROM conversations c`

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation inserts a conversation and any messages it already holds.
func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if err := model.ValidateTitle(c.Title); err != nil {
		return err
	}
	for _, msg := range c.Messages {
		if err := msg.Validate(); err != nil {
			return err
		}
	}

	return s.transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO conversations (id, user_id, title, created_at, updated_at)
			VALUES (:id, :user_id, :title, :created_at, :updated_at)`, c)
		if isUniqueViolation(err) {
			return fmt.Errorf("conversation: %w", ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		for _, msg := range c.Messages {
			msg.ConversationID = c.ID
			if err := insertMessage(ctx, tx, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversation loads a conversation owned by userID with its messages in order.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.GetContext(ctx, &c, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	c.Messages = []*model.Message{}
	if err := s.db.SelectContext(ctx, &c.Messages, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? ORDER BY created_at, rowid`, id); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &c, nil
}

// ListConversations returns up to limit conversation summaries, most recently updated first.
// A non-positive limit returns all of them.
func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]model.ConversationMeta, error) {
	query := metaQuery + ` WHERE c.user_id = ? ORDER BY c.updated_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.selectMetas(ctx, query, args...)
}

// SearchConversations finds conversations whose title or any message contains query.
func (s *Store) SearchConversations(ctx context.Context, userID, query string) ([]model.ConversationMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListConversations(ctx, userID, 0)
	}
	pattern := likePattern(query)
	return s.selectMetas(ctx, metaQuery+`
		WHERE c.user_id = ? AND (
			c.title LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM messages m
				WHERE m.conversation_id = c.id AND m.content LIKE ? ESCAPE '\'))
		ORDER BY c.updated_at DESC`, userID, pattern, pattern)
}

func (s *Store) selectMetas(ctx context.Context, query string, args ...interface{}) ([]model.ConversationMeta, error) {
	metas := []model.ConversationMeta{}
	if err := s.db.SelectContext(ctx, &metas, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	for i := range metas {
		if metas[i].Title == "" {
			metas[i].Title = model.DefaultTitle
		}
		if metas[i].MessageCount == 0 {
			metas[i].Preview = "Empty conversation"
		} else {
			metas[i].Preview = util.TruncateRunes(util.SingleLine(metas[i].Preview), previewLength)
		}
	}
	return metas, nil
}

// RenameConversation sets a new title.
func (s *Store) RenameConversation(ctx context.Context, userID, id, title string) error {
	title = strings.TrimSpace(title)
	if err := model.ValidateTitle(title); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, s.now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return requireRow(res)
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return requireRow(res)
}

// AppendMessage adds msg to a conversation owned by userID.
// The conversation is auto-titled from its first user message and trimmed to
// model.MaxMessages non-system messages.
func (s *Store) AppendMessage(ctx context.Context, userID, conversationID string, msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	return s.transaction(ctx, func(tx *sqlx.Tx) error {
		var title string
		err := tx.GetContext(ctx, &title,
			`SELECT title FROM conversations WHERE id = ? AND user_id = ?`, conversationID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}

		msg.ConversationID = conversationID
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}

		if title == "" && msg.Role == model.RoleUser {
			title = model.AutoTitle(msg.Content)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
			title, msg.CreatedAt, conversationID); err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM messages WHERE id IN (
				SELECT id FROM messages
				WHERE conversation_id = ? AND role != 'system'
				ORDER BY created_at DESC, rowid DESC
				LIMIT -1 OFFSET ?)`, conversationID, model.MaxMessages)
		if err != nil {
			return fmt.Errorf("failed to prune messages: %w", err)
		}
		return nil
	})
}

func insertMessage(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :conversation_id, :role, :content, :token_count, :created_at)`, msg)
	if isUniqueViolation(err) {
		return fmt.Errorf("message: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}
