// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"time"

	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

// dashboardRecent is how many conversations and upcoming tasks the dashboard shows.
const dashboardRecent = 5

// DashboardResponse is the body of GET /api/dashboard.
type DashboardResponse struct {
	Greeting            string                   `json:"greeting"`
	Stats               storage.TaskStats        `json:"stats"`
	OverdueTasks        []*model.Task            `json:"overdue_tasks"`
	UpcomingTasks       []*model.Task            `json:"upcoming_tasks"`
	RecentConversations []model.ConversationMeta `json:"recent_conversations"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// handleDashboard handles GET /api/dashboard.
// An optional ?tz=<IANA zone> sets the day and week boundaries for the stats.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := UserFromContext(ctx)

	now := s.now()
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			writeServiceError(w, r, model.ValidationError{Field: "tz", Message: "unknown time zone"})
			return
		}
		now = now.In(loc)
	}

	stats, err := s.store.TaskStats(ctx, user.ID, now)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	overdue, err := s.store.ListTasks(ctx, user.ID, storage.TaskFilter{Overdue: true, Limit: dashboardRecent})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	upcoming, err := s.store.UpcomingTasks(ctx, user.ID, now, dashboardRecent)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	recent, err := s.store.ListConversations(ctx, user.ID, dashboardRecent)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Greeting:            greeting(now) + ", " + user.DisplayName(),
		Stats:               stats,
		OverdueTasks:        overdue,
		UpcomingTasks:       upcoming,
		RecentConversations: recent,
		GeneratedAt:         now.UTC(),
	})
}

// greeting picks a salutation for the local hour of now.
func greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
