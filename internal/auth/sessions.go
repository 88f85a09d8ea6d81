// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// tokenBytes is the size of a session token before encoding (256 bits).
const tokenBytes = 32

// =============================================================================
// SESSION
// =============================================================================

// Session is an authenticated login.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// expired reports whether the session is past its absolute or idle deadline.
func (s *Session) expired(now time.Time, idle time.Duration) bool {
	if !now.Before(s.ExpiresAt) {
		return true
	}
	return idle > 0 && now.Sub(s.LastActivity) >= idle
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// SessionManager stores sessions in memory. It is safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl  time.Duration
	idle time.Duration
	now  func() time.Time
}

// NewSessionManager creates a manager with the given absolute lifetime and idle timeout.
// An idle timeout of zero disables idle expiry.
func NewSessionManager(ttl, idle time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		idle:     idle,
		now:      time.Now,
	}
}

// Create starts a session for userID.
func (m *SessionManager) Create(userID string) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		Token:        token,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[token] = s
	m.mu.Unlock()

	out := *s
	return &out, nil
}

// Validate returns the session for token and refreshes its idle window.
func (m *SessionManager) Validate(token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrInvalidSession
	}
	now := m.now()
	if s.expired(now, m.idle) {
		delete(m.sessions, token)
		return nil, ErrInvalidSession
	}
	s.LastActivity = now

	out := *s
	return &out, nil
}

// Revoke ends a single session. Unknown tokens are ignored.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// RevokeUser ends every session of userID except keep (which may be empty).
// Returns the number of sessions ended.
func (m *SessionManager) RevokeUser(userID, keep string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if s.UserID == userID && token != keep {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

// Cleanup removes expired sessions and returns how many were removed.
func (m *SessionManager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for token, s := range m.sessions {
		if s.expired(now, m.idle) {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

// Count returns the number of live session entries (including not yet cleaned expired ones).
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// generateToken returns a URL-safe random token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cryptographic random generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
