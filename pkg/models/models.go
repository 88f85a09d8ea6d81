// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models is the public data-model surface of zaura.
//
// It re-exports the domain entities defined in internal/model so that code
// outside this module can name them. Each name is an alias, not a copy:
// models.User and the internal User are the same type.
package models

import "github.com/jeranaias/zaura/internal/model"

type (
	User         = model.User
	Task         = model.Task
	Conversation = model.Conversation
	Message      = model.Message
)

// Exports lists the names this package makes public, in declaration order.
var Exports = []string{"User", "Task", "Conversation", "Message"}
