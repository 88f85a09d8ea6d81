// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/zaura/internal/model"
)

func TestConversation_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	conv := model.NewConversation(u.ID)
	conv.AddSystemMessage("You are a planner.")
	conv.AddUserMessage("Plan my week")
	conv.AddAssistantMessage("Here is a plan.")
	require.NoError(t, store.CreateConversation(ctx, conv))

	got, err := store.GetConversation(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan my week", got.Title)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, model.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, model.RoleUser, got.Messages[1].Role)
	assert.Equal(t, "Here is a plan.", got.Messages[2].Content)
	assert.Equal(t, conv.ID, got.Messages[2].ConversationID)
}

func TestConversation_ScopedToOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	conv := model.NewConversation(alice.ID)
	require.NoError(t, store.CreateConversation(ctx, conv))

	_, err := store.GetConversation(ctx, bob.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.AppendMessage(ctx, bob.ID, conv.ID, model.NewUserMessage("hi")), ErrNotFound)
	assert.ErrorIs(t, store.RenameConversation(ctx, bob.ID, conv.ID, "x"), ErrNotFound)
	assert.ErrorIs(t, store.DeleteConversation(ctx, bob.ID, conv.ID), ErrNotFound)
}

func TestConversation_AppendMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	conv := model.NewConversation(u.ID)
	require.NoError(t, store.CreateConversation(ctx, conv))

	require.NoError(t, store.AppendMessage(ctx, u.ID, conv.ID, model.NewSystemMessage("setup")))
	got, err := store.GetConversation(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Title, "system messages do not title a conversation")

	first := model.NewUserMessage("Organize\nthe garage this weekend")
	require.NoError(t, store.AppendMessage(ctx, u.ID, conv.ID, first))
	require.NoError(t, store.AppendMessage(ctx, u.ID, conv.ID, model.NewUserMessage("something else")))

	got, err = store.GetConversation(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Organize the garage this weekend", got.Title)
	assert.Len(t, got.Messages, 3)
	assert.False(t, got.UpdatedAt.Before(first.CreatedAt))

	err = store.AppendMessage(ctx, u.ID, conv.ID, model.NewUserMessage("   "))
	assert.True(t, model.IsValidation(err))
}

func TestConversation_AppendPrunes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	conv := model.NewConversation(u.ID)
	conv.AddSystemMessage("keep me")
	for i := 0; i < model.MaxMessages; i++ {
		conv.AddUserMessage("msg")
	}
	require.NoError(t, store.CreateConversation(ctx, conv))

	require.NoError(t, store.AppendMessage(ctx, u.ID, conv.ID, model.NewUserMessage("newest")))

	got, err := store.GetConversation(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, model.MaxMessages+1)
	assert.Equal(t, model.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "newest", got.LastMessage().Content)
}

func TestConversation_ListAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	older := model.NewConversation(u.ID)
	older.AddUserMessage("Grocery list for the party")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.CreateConversation(ctx, older))

	newer := model.NewConversation(u.ID)
	newer.AddUserMessage(strings.Repeat("long ", 50))
	newer.AddAssistantMessage("Mention of GROCERY items")
	require.NoError(t, store.CreateConversation(ctx, newer))

	empty := model.NewConversation(u.ID)
	empty.UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.CreateConversation(ctx, empty))

	metas, err := store.ListConversations(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, newer.ID, metas[0].ID)
	assert.Equal(t, 2, metas[0].MessageCount)
	assert.Equal(t, 100, len([]rune(metas[0].Preview)))
	assert.Equal(t, older.ID, metas[1].ID)
	assert.Equal(t, "Grocery list for the party", metas[1].Preview)
	assert.Equal(t, model.DefaultTitle, metas[2].Title)
	assert.Equal(t, "Empty conversation", metas[2].Preview)

	limited, err := store.ListConversations(ctx, u.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	found, err := store.SearchConversations(ctx, u.ID, "grocery")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)

	none, err := store.SearchConversations(ctx, u.ID, "zebra")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConversation_RenameAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	conv := model.NewConversation(u.ID)
	conv.AddUserMessage("hello")
	require.NoError(t, store.CreateConversation(ctx, conv))

	require.NoError(t, store.RenameConversation(ctx, u.ID, conv.ID, "  Weekly plan  "))
	got, err := store.GetConversation(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly plan", got.Title)

	err = store.RenameConversation(ctx, u.ID, conv.ID, strings.Repeat("x", model.MaxTitleLength+1))
	assert.True(t, model.IsValidation(err))

	require.NoError(t, store.DeleteConversation(ctx, u.ID, conv.ID))
	_, err = store.GetConversation(ctx, u.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
