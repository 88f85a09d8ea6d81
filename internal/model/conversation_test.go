// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation("user-1")

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "user-1", conv.UserID)
	assert.Zero(t, conv.MessageCount())
	assert.Equal(t, DefaultTitle, conv.GetTitle())
	assert.Equal(t, "Empty conversation", conv.Preview())
}

func TestConversation_AutoTitle(t *testing.T) {
	conv := NewConversation("user-1")
	conv.AddSystemMessage("You are a planner")
	conv.AddUserMessage("Plan my week:\nmonday gym, tuesday report, wednesday review meeting with the team")

	assert.Equal(t, 50, len([]rune(conv.Title)))
	assert.True(t, strings.HasSuffix(conv.Title, "..."))
	assert.NotContains(t, conv.Title, "\n")

	// Later messages do not change the title
	conv.AddUserMessage("Something else")
	assert.True(t, strings.HasPrefix(conv.Title, "Plan my week:"))
}

func TestConversation_SetTitle(t *testing.T) {
	conv := NewConversation("user-1")
	require.NoError(t, conv.SetTitle("  Weekly plan "))
	assert.Equal(t, "Weekly plan", conv.Title)

	conv.AddUserMessage("hello")
	assert.Equal(t, "Weekly plan", conv.Title)

	assert.Error(t, conv.SetTitle(strings.Repeat("x", 201)))
}

func TestConversation_Messages(t *testing.T) {
	conv := NewConversation("user-1")
	user := conv.AddUserMessage("hi")
	reply := conv.AddAssistantMessage("hello!")

	assert.Equal(t, conv.ID, user.ConversationID)
	assert.Equal(t, 2, conv.MessageCount())
	assert.Same(t, reply, conv.LastMessage())
	assert.Same(t, user, conv.LastUserMessage())
	assert.Equal(t, user.EstimateTokens()+reply.EstimateTokens()+8, conv.EstimateTokens())

	meta := conv.Meta()
	assert.Equal(t, 2, meta.MessageCount)
	assert.Equal(t, "hi", meta.Preview)
}

func TestConversation_PruneKeepsSystem(t *testing.T) {
	conv := NewConversation("user-1")
	conv.AddSystemMessage("system prompt")
	for i := 0; i < MaxMessages+5; i++ {
		conv.AddUserMessage("msg")
	}

	assert.Equal(t, MaxMessages+1, conv.MessageCount())
	assert.Equal(t, RoleSystem, conv.Messages[0].Role)
}

func TestConversation_Clone(t *testing.T) {
	conv := NewConversation("user-1")
	conv.AddUserMessage("original")

	c := conv.Clone()
	c.Messages[0].Content = "changed"
	assert.Equal(t, "original", conv.Messages[0].Content)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_Validate(t *testing.T) {
	assert.NoError(t, NewUserMessage("ok").Validate())
	assert.Error(t, NewMessage("tool", "x").Validate())
	assert.Error(t, NewUserMessage("   ").Validate())
	assert.Error(t, NewUserMessage(strings.Repeat("x", MaxMessageLength+1)).Validate())
}

func TestMessage_PreviewUnicode(t *testing.T) {
	msg := NewUserMessage("日本語のメッセージです")
	assert.Equal(t, "日本...", msg.Preview(5))
	assert.Equal(t, "日本語のメッセージです", msg.Preview(50))
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Zaura", RoleAssistant.DisplayName())
	assert.Equal(t, "custom", Role("custom").DisplayName())
}

func TestConversation_PreviewPrefersLastUserMessage(t *testing.T) {
	conv := NewConversation("user-1")
	conv.AddSystemMessage("You are a planner")
	assert.Nil(t, conv.LastUserMessage())
	assert.Equal(t, "You are a planner", conv.Preview(), "falls back to the first message")

	conv.AddUserMessage("first question")
	conv.AddAssistantMessage("an answer")
	conv.AddUserMessage("follow up")
	conv.AddAssistantMessage("another answer")

	assert.Equal(t, "follow up", conv.Preview())
	meta := conv.Meta()
	assert.Equal(t, "follow up", meta.Preview)
	assert.Equal(t, 5, meta.MessageCount)
}
