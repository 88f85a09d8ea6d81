// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides SQLite persistence for zaura.
//
// A single Store owns the database handle and exposes scoped CRUD for users,
// tasks and conversations. Every task and conversation query is filtered by
// the owning user; a row that belongs to someone else is reported exactly like
// a missing row (ErrNotFound).
//
// # Key Types
//
//   - Store: Database handle with user, task and conversation operations
//   - TaskFilter: Query parameters for ListTasks
//   - TaskStats: Dashboard counters computed by TaskStats
//
// # Usage
//
// Open the database (the schema is created on first use):
//
//	store, err := storage.Open(ctx, "~/.zaura/zaura.db")
//	defer store.Close()
//
// Create and query tasks:
//
//	err := store.CreateTask(ctx, task)
//	tasks, err := store.ListTasks(ctx, userID, storage.TaskFilter{Status: model.TaskStatusTodo})
//
// Append to a conversation:
//
//	err := store.AppendMessage(ctx, userID, convID, model.NewUserMessage("hello"))
//
// # Storage Location
//
// The database path comes from [database] path in config.toml and defaults to
// ~/.zaura/zaura.db. ":memory:" opens a private in-memory database.
package storage
