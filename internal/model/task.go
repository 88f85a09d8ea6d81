// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// TASK LIMITS
// =============================================================================

const (
	MaxTaskTitleLength       = 200
	MaxTaskDescriptionLength = 5000
	MaxTaskTags              = 20
	MaxTagLength             = 32
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents where a task is in its lifecycle.
type TaskStatus string

const (
	// TaskStatusTodo indicates the task is planned but not started
	TaskStatusTodo TaskStatus = "todo"

	// TaskStatusInProgress indicates the task is being worked on
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusDone indicates the task was completed
	TaskStatusDone TaskStatus = "done"

	// TaskStatusCanceled indicates the task was dropped
	TaskStatusCanceled TaskStatus = "canceled"
)

// TaskStatuses lists every status in lifecycle order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCanceled}

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further work is expected.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCanceled
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCanceled:
		return true
	}
	return false
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (TaskStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "todo", "to_do":
		return TaskStatusTodo, nil
	case "in_progress", "doing":
		return TaskStatusInProgress, nil
	case "done", "complete", "completed":
		return TaskStatusDone, nil
	case "canceled", "cancelled":
		return TaskStatusCanceled, nil
	}
	return "", ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
}

// =============================================================================
// TASK PRIORITY
// =============================================================================

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Rank orders priorities; higher is more urgent. Unknown priorities rank 0.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityLow:
		return 1
	case TaskPriorityMedium:
		return 2
	case TaskPriorityHigh:
		return 3
	case TaskPriorityUrgent:
		return 4
	}
	return 0
}

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	return p.Rank() > 0
}

// String returns the string representation of the priority.
func (p TaskPriority) String() string {
	return string(p)
}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (TaskPriority, error) {
	p := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", s)}
	}
	return p, nil
}

// =============================================================================
// TAGS
// =============================================================================

// Tags is a normalized tag set persisted as a JSON array.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Tags", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*t = Tags(out)
	return nil
}

// normalizeTags lowercases, trims, drops empties, dedupes and sorts.
func normalizeTags(tags []string) Tags {
	seen := make(map[string]bool, len(tags))
	out := make(Tags, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task is a unit of planned work owned by a user.
type Task struct {
	ID          string       `json:"id" db:"id"`
	UserID      string       `json:"user_id" db:"user_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	Status      TaskStatus   `json:"status" db:"status"`
	Priority    TaskPriority `json:"priority" db:"priority"`
	Tags        Tags         `json:"tags" db:"tags"`

	// Scheduling
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// ConversationID is the conversation this task was planned from, if any
	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTask creates a todo task with medium priority.
func NewTask(userID, title string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		Status:    TaskStatusTodo,
		Priority:  TaskPriorityMedium,
		Tags:      Tags{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks every field constraint and returns all failures at once.
func (t *Task) Validate() error {
	var errs ValidationErrors

	if t.UserID == "" {
		errs = append(errs, ValidationError{Field: "user_id", Message: "is required"})
	}
	titleLen := utf8.RuneCountInString(strings.TrimSpace(t.Title))
	if titleLen == 0 {
		errs = append(errs, ValidationError{Field: "title", Message: "is required"})
	} else if titleLen > MaxTaskTitleLength {
		errs = append(errs, ValidationError{Field: "title", Message: "must be at most 200 characters"})
	}
	if utf8.RuneCountInString(t.Description) > MaxTaskDescriptionLength {
		errs = append(errs, ValidationError{Field: "description", Message: "must be at most 5000 characters"})
	}
	if !t.Status.IsValid() {
		errs = append(errs, ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", t.Status)})
	}
	if !t.Priority.IsValid() {
		errs = append(errs, ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", t.Priority)})
	}
	if len(t.Tags) > MaxTaskTags {
		errs = append(errs, ValidationError{Field: "tags", Message: "at most 20 tags allowed"})
	}
	for _, tag := range t.Tags {
		if utf8.RuneCountInString(tag) > MaxTagLength {
			errs = append(errs, ValidationError{Field: "tags", Message: fmt.Sprintf("tag %q exceeds 32 characters", tag)})
		}
	}

	return errs.orNil()
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// CanTransition reports whether moving from one status to another is allowed.
// Valid transitions:
//
//	todo        -> in_progress, done, canceled
//	in_progress -> todo, done, canceled
//	done        -> todo, in_progress (reopen)
//	canceled    -> todo (restore)
func CanTransition(from, to TaskStatus) bool {
	// Allow setting the same status (idempotent)
	if from == to {
		return from.IsValid()
	}

	switch from {
	case TaskStatusTodo:
		return to == TaskStatusInProgress || to == TaskStatusDone || to == TaskStatusCanceled
	case TaskStatusInProgress:
		return to == TaskStatusTodo || to == TaskStatusDone || to == TaskStatusCanceled
	case TaskStatusDone:
		return to == TaskStatusTodo || to == TaskStatusInProgress
	case TaskStatusCanceled:
		return to == TaskStatusTodo
	default:
		return false
	}
}

// SetStatus moves the task to status, maintaining CompletedAt.
func (t *Task) SetStatus(status TaskStatus) error {
	if !CanTransition(t.Status, status) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, t.Status, status)
	}
	if t.Status == status {
		return nil
	}

	now := time.Now().UTC()
	if status == TaskStatusDone {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

// =============================================================================
// TASK METHODS
// =============================================================================

// SetTags replaces the tag set with a normalized copy of tags.
func (t *Task) SetTags(tags []string) {
	t.Tags = normalizeTags(tags)
}

// AddTag adds a tag if not already present.
func (t *Task) AddTag(tag string) {
	t.Tags = normalizeTags(append(append([]string{}, t.Tags...), tag))
}

// RemoveTag removes a tag; returns true if it was present.
func (t *Task) RemoveTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for i, existing := range t.Tags {
		if existing == tag {
			t.Tags = append(t.Tags[:i:i], t.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// HasTag reports whether the task carries tag.
func (t *Task) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// IsOverdue reports whether an open task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.IsTerminal() {
		return false
	}
	return t.DueDate.Before(now)
}

// Touch bumps UpdatedAt.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Clone creates a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append(Tags{}, t.Tags...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}
