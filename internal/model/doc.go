// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the core domain types for zaura.
//
// This package defines the entities shared by storage, the HTTP API and the
// command line: accounts, tasks, and assistant conversations.
//
// # Key Types
//
//   - User: An account with normalized email/username and a bcrypt password hash
//   - Task: A unit of planned work with a validated status lifecycle
//   - Conversation: Container for a chat thread with messages and metadata
//   - Message: Single message with role, content and timestamp
//
// # Usage
//
// Create a user and a task:
//
//	user, err := model.NewUser("ada@example.com", "ada", "Ada Lovelace")
//	err = user.SetPassword("correct horse battery")
//	task, err := model.NewTask(user.ID, "Draft the roadmap")
//	err = task.SetStatus(model.TaskStatusInProgress)
//
// Start a conversation:
//
//	conv := model.NewConversation(user.ID)
//	conv.AddUserMessage("Help me plan next week")
package model
