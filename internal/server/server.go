// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jeranaias/zaura/internal/auth"
	"github.com/jeranaias/zaura/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultRateLimit is the default requests per minute per client IP.
	DefaultRateLimit = 120

	// MaxRequestBodySize is the maximum size for request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// shutdownTimeout bounds graceful shutdown after the context ends.
	shutdownTimeout = 10 * time.Second

	// limiterSweep is how often idle rate limit buckets are dropped.
	limiterSweep = 5 * time.Minute
)

// Version is reported by /health. Set by the CLI from the build version.
var Version = "dev"

// ============================================================================
// OPTIONS
// ============================================================================

// Options configures the HTTP server.
type Options struct {
	Addr string

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string

	// RateLimitPerMinute is per client IP; zero or less disables limiting.
	RateLimitPerMinute int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RequestLogger receives one REQUEST line per request. Nil disables request logging.
	RequestLogger *log.Logger
}

func (o *Options) fillDefaults() {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 60 * time.Second
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the zaura HTTP API server.
type Server struct {
	opts    Options
	store   *storage.Store
	auth    *auth.Service
	router  *http.ServeMux
	handler http.Handler

	cors    *CORSConfig
	limiter *RateLimiter

	now func() time.Time
}

// New creates a Server with routes and middleware installed.
func New(opts Options, store *storage.Store, authService *auth.Service) *Server {
	opts.fillDefaults()

	s := &Server{
		opts:    opts,
		store:   store,
		auth:    authService,
		router:  http.NewServeMux(),
		cors:    NewCORSConfig(opts.CORSOrigins),
		limiter: NewRateLimiter(opts.RateLimitPerMinute),
		now:     time.Now,
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{RecoveryMiddleware()}
	if opts.RequestLogger != nil {
		middlewares = append(middlewares, LoggingMiddleware(opts.RequestLogger))
	}
	middlewares = append(middlewares,
		SecurityHeadersMiddleware(),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(s.limiter),
	)
	s.handler = Chain(middlewares...)(s.router)

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	authed := RequireAuth(s.auth)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	s.router.HandleFunc("GET /health", s.handleHealth)

	// Accounts
	s.router.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.router.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.router.Handle("POST /api/auth/logout", protect(s.handleLogout))

	s.router.Handle("GET /api/users/me", protect(s.handleGetMe))
	s.router.Handle("PATCH /api/users/me", protect(s.handleUpdateMe))
	s.router.Handle("POST /api/users/me/password", protect(s.handleChangePassword))
	s.router.Handle("POST /api/users/me/mfa", protect(s.handleBeginMFA))
	s.router.Handle("POST /api/users/me/mfa/confirm", protect(s.handleConfirmMFA))
	s.router.Handle("DELETE /api/users/me/mfa", protect(s.handleDisableMFA))

	// Tasks
	s.router.Handle("GET /api/tasks", protect(s.handleListTasks))
	s.router.Handle("POST /api/tasks", protect(s.handleCreateTask))
	s.router.Handle("GET /api/tasks/{id}", protect(s.handleGetTask))
	s.router.Handle("PATCH /api/tasks/{id}", protect(s.handleUpdateTask))
	s.router.Handle("DELETE /api/tasks/{id}", protect(s.handleDeleteTask))
	s.router.Handle("POST /api/tasks/{id}/status", protect(s.handleSetTaskStatus))

	s.router.Handle("GET /api/dashboard", protect(s.handleDashboard))

	// Conversations
	s.router.Handle("GET /api/conversations", protect(s.handleListConversations))
	s.router.Handle("POST /api/conversations", protect(s.handleCreateConversation))
	s.router.Handle("GET /api/conversations/{id}", protect(s.handleGetConversation))
	s.router.Handle("PATCH /api/conversations/{id}", protect(s.handleRenameConversation))
	s.router.Handle("DELETE /api/conversations/{id}", protect(s.handleDeleteConversation))
	s.router.Handle("POST /api/conversations/{id}/messages", protect(s.handleAppendMessage))
	s.router.Handle("GET /api/conversations/{id}/export", protect(s.handleExportConversation))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ApplyReload updates the settings that can change without a restart.
func (s *Server) ApplyReload(corsOrigins []string, rateLimitPerMinute int) {
	s.cors.SetOrigins(corsOrigins)
	s.limiter.SetLimit(rateLimitPerMinute)
	log.Printf("SERVER_RELOADED | cors_origins=%d rate_limit=%d/min", len(corsOrigins), rateLimitPerMinute)
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Database: "ok",
		Sessions: s.auth.Sessions().Count(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Printf("HEALTH_DB_ERROR | error=%v", err)
		health.Status = "degraded"
		health.Database = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. The auth session sweeper and rate
// limiter sweeper run for the same lifetime.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go s.auth.Run(ctx)
	go s.limiter.Run(ctx, limiterSweep)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("SERVER_START | addr=%s version=%s", ln.Addr(), Version)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
