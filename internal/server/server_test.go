// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/zaura/internal/auth"
	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

func init() {
	model.PasswordCost = bcrypt.MinCost
}

const testPassword = "correct-horse-battery"

// ============================================================================
// TEST HELPERS
// ============================================================================

type testEnv struct {
	srv   *Server
	store *storage.Store
	auth  *auth.Service
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := auth.NewService(store, auth.DefaultConfig())
	return &testEnv{srv: New(opts, store, svc), store: store, auth: svc}
}

// do sends a request through the full middleware chain.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

// signup creates an account over the API and returns its token and user.
func (e *testEnv) signup(t *testing.T, username string) (string, *model.User) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[auth.LoginResult](t, rec)
	return res.Token, res.User
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ============================================================================
// HEALTH
// ============================================================================

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, Version, health.Version)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, Options{})
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[HealthResponse](t, rec).Status)
}

// ============================================================================
// ACCOUNTS
// ============================================================================

func TestSignup(t *testing.T) {
	env := newTestEnv(t, Options{})

	token, user := env.signup(t, "alice")
	assert.Len(t, token, 43)
	assert.Equal(t, "alice@example.com", user.Email)

	t.Run("duplicate", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email": "other@example.com", "username": "ALICE", "password": testPassword,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email": "nope", "username": "x", "password": testPassword,
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[ErrorResponse](t, rec)
		assert.Equal(t, "validation failed", body.Error)
		assert.Contains(t, body.Fields, "email")
		assert.Contains(t, body.Fields, "username")
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":"a@b.co","admin":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/auth/signup", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "request body is empty", decode[ErrorResponse](t, rec).Error)
	})
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode[auth.LoginResult](t, rec).Token

	rec = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[model.User](t, rec).Username)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_Lockout(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.signup(t, "alice")

	cfg := auth.DefaultConfig()
	for i := 0; i < cfg.MaxLoginAttempts; i++ {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": "wrong-password"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": testPassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not-a-session"} {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequireAuth_DisabledAccount(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, user := env.signup(t, "alice")

	require.NoError(t, env.auth.SetActive(context.Background(), user.ID, false))

	rec := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")
	env.signup(t, "bob")

	rec := env.do(t, http.MethodPatch, "/api/users/me", token, map[string]string{"full_name": "Alice Liddell"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice Liddell", decode[model.User](t, rec).FullName)

	rec = env.do(t, http.MethodPatch, "/api/users/me", token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Cached profile reflects the update
	rec = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, "Alice Liddell", decode[model.User](t, rec).FullName)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": testPassword})
	other := decode[auth.LoginResult](t, rec).Token

	rec = env.do(t, http.MethodPost, "/api/users/me/password", token, map[string]string{
		"current_password": "wrong-password", "new_password": "another-password",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users/me/password", token, map[string]string{
		"current_password": testPassword, "new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users/me/password", token, map[string]string{
		"current_password": testPassword, "new_password": "another-password",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/users/me", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/users/me", other, nil).Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": "another-password"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMFAFlow(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/users/me/mfa/confirm", token, map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code, "confirm before enrollment")

	rec = env.do(t, http.MethodPost, "/api/users/me/mfa", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	enrollment := decode[auth.MFAEnrollment](t, rec)
	require.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.URL, "otpauth://totp/"))

	rec = env.do(t, http.MethodPost, "/api/users/me/mfa/confirm", token, map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/api/users/me/mfa/confirm", token, map[string]string{"code": code})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "mfa code required", decode[ErrorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": testPassword, "code": code})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/users/me/mfa", token, map[string]string{"password": "wrong-password"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/users/me/mfa", token, map[string]string{"password": testPassword})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ============================================================================
// TASKS
// ============================================================================

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, user := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title":    "  Write report ",
		"priority": "HIGH",
		"tags":     []string{"Work", "work", " q3 "},
		"due_date": "2030-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[model.Task](t, rec)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, user.ID, task.UserID)
	assert.Equal(t, model.TaskPriorityHigh, task.Priority)
	assert.Equal(t, model.Tags{"q3", "work"}, task.Tags)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2030-01-15", task.DueDate.Format("2006-01-02"))

	path := "/api/tasks/" + task.ID

	rec = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, path, token, `{"description":"quarterly numbers","due_date":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	task = decode[model.Task](t, rec)
	assert.Equal(t, "quarterly numbers", task.Description)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, model.TaskPriorityHigh, task.Priority, "absent fields untouched")

	rec = env.do(t, http.MethodPost, path+"/status", token, map[string]string{"status": "done"})
	require.Equal(t, http.StatusOK, rec.Code)
	task = decode[model.Task](t, rec)
	assert.Equal(t, model.TaskStatusDone, task.Status)
	assert.NotNil(t, task.CompletedAt)

	rec = env.do(t, http.MethodPost, path+"/status", token, map[string]string{"status": "canceled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/status", token, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTask_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"title":"  "}`, "title"},
		{"bad priority", `{"title":"x","priority":"whenever"}`, "priority"},
		{"bad status", `{"title":"x","status":"paused"}`, "status"},
		{"unknown conversation", `{"title":"x","conversation_id":"nope"}`, "conversation_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/tasks", token, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[ErrorResponse](t, rec).Fields, tt.field)
		})
	}

	rec := env.do(t, http.MethodPost, "/api/tasks", token, `{"title":"x","due_date":"next week"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTask_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, user := env.signup(t, "alice")

	body := `{"title":"x","description":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`
	rec := env.do(t, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decode[ErrorResponse](t, rec).Error)

	tasks, err := env.store.ListTasks(context.Background(), user.ID, storage.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTask_OwnerScoping(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice, _ := env.signup(t, "alice")
	bob, _ := env.signup(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/tasks", alice, map[string]string{"title": "private"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Task](t, rec).ID

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/tasks/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/api/tasks/"+id, bob, map[string]string{"title": "mine"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/tasks/"+id, bob, nil).Code)

	rec = env.do(t, http.MethodGet, "/api/tasks", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestListTasks_Filters(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	create := func(body string) {
		rec := env.do(t, http.MethodPost, "/api/tasks", token, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	create(`{"title":"Buy milk","tags":["home"],"priority":"low"}`)
	create(`{"title":"Ship release","tags":["work"],"priority":"urgent"}`)
	create(`{"title":"Old invoice","due_date":"2001-01-01"}`)
	create(`{"title":"Done thing","status":"done"}`)

	type listResponse struct {
		Tasks []*model.Task `json:"tasks"`
		Count int           `json:"count"`
	}
	list := func(query string) []string {
		rec := env.do(t, http.MethodGet, "/api/tasks"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var titles []string
		for _, task := range decode[listResponse](t, rec).Tasks {
			titles = append(titles, task.Title)
		}
		return titles
	}

	assert.Equal(t, []string{"Ship release", "Old invoice", "Buy milk", "Done thing"}, list(""))
	assert.Equal(t, []string{"Buy milk"}, list("?tag=HOME"))
	assert.Equal(t, []string{"Done thing"}, list("?status=done"))
	assert.Equal(t, []string{"Ship release"}, list("?priority=urgent"))
	assert.Equal(t, []string{"Old invoice"}, list("?overdue=true"))
	assert.Equal(t, []string{"Ship release"}, list("?q=RELEASE"))
	assert.Equal(t, []string{"Old invoice"}, list("?limit=1&offset=1"))

	rec := env.do(t, http.MethodGet, "/api/tasks?limit=-1&overdue=maybe", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode[ErrorResponse](t, rec).Fields
	assert.Contains(t, fields, "limit")
	assert.Contains(t, fields, "overdue")
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/conversations", token, map[string]interface{}{
		"messages": []map[string]string{
			{"role": "system", "content": "Be brief."},
			{"content": "Plan my week\naround the launch"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[model.Conversation](t, rec)
	assert.Equal(t, "Plan my week around the launch", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[1].Role)

	path := "/api/conversations/" + conv.ID

	rec = env.do(t, http.MethodPost, path+"/messages", token, map[string]string{"role": "assistant", "content": "Sure. Monday: scope."})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, path+"/messages", token, map[string]string{"role": "robot", "content": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.Conversation](t, rec).Messages, 3)

	rec = env.do(t, http.MethodPatch, path, token, map[string]string{"title": "Launch week"})
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decode[model.ConversationMeta](t, rec)
	assert.Equal(t, "Launch week", meta.Title)
	assert.Equal(t, 3, meta.MessageCount)

	rec = env.do(t, http.MethodPatch, path, token, map[string]string{"title": strings.Repeat("x", 201)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	type listResponse struct {
		Conversations []model.ConversationMeta `json:"conversations"`
	}
	rec = env.do(t, http.MethodGet, "/api/conversations?q=monday", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listResponse](t, rec).Conversations, 1)

	rec = env.do(t, http.MethodGet, "/api/conversations?q=nothing-here", token, nil)
	assert.Empty(t, decode[listResponse](t, rec).Conversations)

	rec = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, token, nil).Code)
}

func TestConversation_OwnerScoping(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice, _ := env.signup(t, "alice")
	bob, _ := env.signup(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/conversations", alice, map[string]string{"title": "secret"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/conversations/" + decode[model.Conversation](t, rec).ID

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, path+"/messages", bob, map[string]string{"content": "hi"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path+"/export", bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, bob, nil).Code)
}

func TestExportConversation(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/conversations", token, map[string]interface{}{
		"title":    "Trip plan",
		"messages": []map[string]string{{"content": "Pack the <tent>"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/conversations/" + decode[model.Conversation](t, rec).ID + "/export"

	tests := []struct {
		format   string
		mime     string
		ext      string
		contains string
	}{
		{"", "text/markdown; charset=utf-8", ".md", "# Trip plan"},
		{"json", "application/json", ".json", `"title": "Trip plan"`},
		{"html", "text/html; charset=utf-8", ".html", "&lt;tent&gt;"},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, path+"?format="+tt.format, token, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.mime, rec.Header().Get("Content-Type"))
			disposition := rec.Header().Get("Content-Disposition")
			assert.Contains(t, disposition, "attachment; filename=\"conversation_Trip_plan_")
			assert.Contains(t, disposition, tt.ext+`"`)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	rec = env.do(t, http.MethodGet, path+"?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// DASHBOARD
// ============================================================================

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	for _, body := range []string{
		`{"title":"Late","due_date":"2001-01-01"}`,
		`{"title":"Soon","due_date":"2099-01-01"}`,
		`{"title":"Finished","status":"done"}`,
	} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", token, body).Code)
	}
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/conversations", token, map[string]string{"title": "Ideas"}).Code)

	rec := env.do(t, http.MethodGet, "/api/dashboard?tz=UTC", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := decode[DashboardResponse](t, rec)

	assert.Equal(t, 3, dash.Stats.Total)
	assert.Equal(t, 1, dash.Stats.Overdue)
	assert.Equal(t, 1, dash.Stats.ByStatus[model.TaskStatusDone])
	assert.Equal(t, 1, dash.Stats.CompletedThisWeek)
	require.Len(t, dash.OverdueTasks, 1)
	assert.Equal(t, "Late", dash.OverdueTasks[0].Title)
	require.Len(t, dash.UpcomingTasks, 1)
	assert.Equal(t, "Soon", dash.UpcomingTasks[0].Title)
	require.Len(t, dash.RecentConversations, 1)
	assert.True(t, strings.HasSuffix(dash.Greeting, ", alice"))

	rec = env.do(t, http.MethodGet, "/api/dashboard?tz=Mars/Olympus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_UpcomingBeyondBacklog(t *testing.T) {
	env := newTestEnv(t, Options{})
	token, _ := env.signup(t, "alice")

	// Urgent overdue work sorts ahead of everything in the task list
	for i := 0; i < 20; i++ {
		body := `{"title":"Backlog","priority":"urgent","due_date":"2001-01-01"}`
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", token, body).Code)
	}
	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)
	body := `{"title":"Tomorrow","priority":"low","due_date":"` + tomorrow + `"}`
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", token, body).Code)

	rec := env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dash := decode[DashboardResponse](t, rec)

	assert.Equal(t, 20, dash.Stats.Overdue)
	assert.Len(t, dash.OverdueTasks, dashboardRecent)
	require.Len(t, dash.UpcomingTasks, 1)
	assert.Equal(t, "Tomorrow", dash.UpcomingTasks[0].Title)
}

func TestGreeting(t *testing.T) {
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Good morning", greeting(day.Add(9*time.Hour)))
	assert.Equal(t, "Good afternoon", greeting(day.Add(13*time.Hour)))
	assert.Equal(t, "Good evening", greeting(day.Add(21*time.Hour)))
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func TestServe_GracefulShutdown(t *testing.T) {
	env := newTestEnv(t, Options{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.srv.Serve(ctx, ln) }()

	transport := &http.Transport{}
	client := &http.Client{Transport: transport, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	transport.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_BadAddress(t *testing.T) {
	env := newTestEnv(t, Options{Addr: "not-an-address"})
	assert.Error(t, env.srv.Start(context.Background()))
}

func TestApplyReload(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodGet, "/health", "", nil).Code)

	env.srv.ApplyReload([]string{"https://app.example.com"}, 0)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, []string{"https://app.example.com"}, env.srv.cors.Origins())
}
