// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the zaura HTTP JSON API.
//
// # Endpoints
//
//   - GET    /health                               - Liveness and version
//   - POST   /api/auth/signup                      - Create account and session
//   - POST   /api/auth/login                       - Start a session
//   - POST   /api/auth/logout                      - Revoke the current session
//   - GET    /api/users/me                         - Current profile
//   - PATCH  /api/users/me                         - Update profile
//   - POST   /api/users/me/password                - Change password
//   - POST   /api/users/me/mfa                     - Begin TOTP enrollment
//   - POST   /api/users/me/mfa/confirm             - Activate TOTP
//   - DELETE /api/users/me/mfa                     - Disable TOTP
//   - GET    /api/tasks                            - List tasks (status, priority, tag, q, overdue, limit, offset)
//   - POST   /api/tasks                            - Create task
//   - GET    /api/tasks/{id}                       - Read task
//   - PATCH  /api/tasks/{id}                       - Update task
//   - DELETE /api/tasks/{id}                       - Delete task
//   - POST   /api/tasks/{id}/status                - Change task status
//   - GET    /api/dashboard                        - Task stats and recent conversations
//   - GET    /api/conversations                    - List or search (?q=) conversations
//   - POST   /api/conversations                    - Create conversation
//   - GET    /api/conversations/{id}               - Read conversation with messages
//   - PATCH  /api/conversations/{id}               - Rename conversation
//   - DELETE /api/conversations/{id}               - Delete conversation
//   - POST   /api/conversations/{id}/messages      - Append message
//   - GET    /api/conversations/{id}/export        - Download (?format=markdown|json|html)
//
// Everything under /api except signup and login needs an
// "Authorization: Bearer <token>" header.
//
// # Middleware
//
// Requests pass Recovery, Logging, SecurityHeaders, CORS and RateLimit in
// that order. Errors are returned as {"error": "message"}.
//
// # Usage
//
//	srv := server.New(server.Options{Addr: "127.0.0.1:8787"}, store, authService)
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
