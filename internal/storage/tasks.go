// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/zaura/internal/model"
)

// =============================================================================
// TASK QUERIES
// =============================================================================

// MaxTaskPageSize caps TaskFilter.Limit.
const MaxTaskPageSize = 500

const taskColumns = `id, user_id, title, description, status, priority, tags,
	due_date, completed_at, conversation_id, created_at, updated_at`

// taskOrder puts open work first, then by urgency, then by due date (undated last).
const taskOrder = `
	ORDER BY
		CASE WHEN status IN ('done', 'canceled') THEN 1 ELSE 0 END,
		CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC,
		due_date IS NULL,
		due_date,
		created_at DESC`

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status   model.TaskStatus
	Priority model.TaskPriority
	Tag      string

	// Query matches title or description as a case-insensitive substring
	Query string

	// Overdue restricts to open tasks whose due date has passed
	Overdue bool

	Limit  int
	Offset int
}

// where builds the WHERE clause and arguments for the filter.
func (f TaskFilter) where(userID string, now time.Time) (string, []interface{}) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{userID}

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, f.Priority)
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(tasks.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(q), likePattern(q))
	}
	if f.Overdue {
		clauses = append(clauses, "due_date IS NOT NULL AND due_date < ? AND status NOT IN ('done', 'canceled')")
		args = append(args, now)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (:id, :user_id, :title, :description, :status, :priority, :tags,
			:due_date, :completed_at, :conversation_id, :created_at, :updated_at)`, t)
	if isUniqueViolation(err) {
		return fmt.Errorf("task: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask loads a task owned by userID.
func (s *Store) GetTask(ctx context.Context, userID, id string) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return &t, nil
}

// ListTasks returns the user's tasks matching filter.
func (s *Store) ListTasks(ctx context.Context, userID string, filter TaskFilter) ([]*model.Task, error) {
	where, args := filter.where(userID, s.now())
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + taskOrder

	limit := filter.Limit
	if limit <= 0 || limit > MaxTaskPageSize {
		limit = MaxTaskPageSize
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))

	tasks := []*model.Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpcomingTasks returns up to limit open tasks due at or after now, soonest first.
func (s *Store) UpcomingTasks(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Task, error) {
	if limit <= 0 || limit > MaxTaskPageSize {
		limit = MaxTaskPageSize
	}
	tasks := []*model.Task{}
	err := s.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND due_date IS NOT NULL AND due_date >= ?
			AND status NOT IN ('done', 'canceled')
		ORDER BY due_date, created_at
		LIMIT ?`, userID, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask saves every mutable column of t. Ownership is checked via t.UserID.
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE tasks SET
			title = :title, description = :description, status = :status,
			priority = :priority, tags = :tags, due_date = :due_date,
			completed_at = :completed_at, conversation_id = :conversation_id,
			updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`, t)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(res)
}

// DeleteTask removes a task owned by userID.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireRow(res)
}

// =============================================================================
// DASHBOARD STATS
// =============================================================================

// TaskStats summarizes a user's tasks for the dashboard.
type TaskStats struct {
	Total             int                      `json:"total"`
	ByStatus          map[model.TaskStatus]int `json:"by_status"`
	Overdue           int                      `json:"overdue"`
	DueToday          int                      `json:"due_today"`
	CompletedThisWeek int                      `json:"completed_this_week"`
}

// taskStatRow is the subset of columns TaskStats needs.
type taskStatRow struct {
	Status      model.TaskStatus `db:"status"`
	DueDate     *time.Time       `db:"due_date"`
	CompletedAt *time.Time       `db:"completed_at"`
}

// TaskStats computes dashboard counters relative to now.
// Day and week boundaries are taken in now's location; weeks start on Monday.
func (s *Store) TaskStats(ctx context.Context, userID string, now time.Time) (TaskStats, error) {
	stats := TaskStats{ByStatus: make(map[model.TaskStatus]int, len(model.TaskStatuses))}
	for _, status := range model.TaskStatuses {
		stats.ByStatus[status] = 0
	}

	var rows []taskStatRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT status, due_date, completed_at FROM tasks WHERE user_id = ?`, userID); err != nil {
		return stats, fmt.Errorf("failed to load task stats: %w", err)
	}

	loc := now.Location()
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	for _, r := range rows {
		stats.Total++
		stats.ByStatus[r.Status]++

		open := !r.Status.IsTerminal()
		if open && r.DueDate != nil {
			due := r.DueDate.In(loc)
			if due.Before(now) {
				stats.Overdue++
			}
			if !due.Before(today) && due.Before(tomorrow) {
				stats.DueToday++
			}
		}
		if r.Status == model.TaskStatusDone && r.CompletedAt != nil && !r.CompletedAt.Before(weekStart) {
			stats.CompletedThisWeek++
		}
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
