// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// LOGIN GUARD
// =============================================================================

// attemptRecord tracks consecutive failures for one login identifier.
type attemptRecord struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// clientLimiter is a per-client token bucket with its last use time.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginGuard throttles login attempts per client and locks identifiers after
// repeated failures. It is safe for concurrent use.
type LoginGuard struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	clients  map[string]*clientLimiter

	maxAttempts     int
	lockoutDuration time.Duration
	perMinute       int
	burst           int
	now             func() time.Time
}

// NewLoginGuard creates a guard. perMinute <= 0 disables client throttling and
// maxAttempts <= 0 disables lockout.
func NewLoginGuard(maxAttempts int, lockout time.Duration, perMinute int) *LoginGuard {
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}
	return &LoginGuard{
		attempts:        make(map[string]*attemptRecord),
		clients:         make(map[string]*clientLimiter),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockout,
		perMinute:       perMinute,
		burst:           burst,
		now:             time.Now,
	}
}

// Allow consumes a token from client's bucket.
func (g *LoginGuard) Allow(client string) bool {
	if g.perMinute <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cl, ok := g.clients[client]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(g.perMinute)/60.0), g.burst),
		}
		g.clients[client] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Check returns ErrLockedOut while identifier is locked.
func (g *LoginGuard) Check(identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.attempts[identifier]
	if !ok {
		return nil
	}
	if g.now().Before(rec.lockedUntil) {
		return ErrLockedOut
	}
	return nil
}

// RecordFailure counts a failed attempt and locks the identifier once the
// threshold is reached. Returns true if this failure triggered a lockout.
func (g *LoginGuard) RecordFailure(identifier string) bool {
	if g.maxAttempts <= 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	rec, ok := g.attempts[identifier]
	if !ok {
		rec = &attemptRecord{}
		g.attempts[identifier] = rec
	}

	// An expired lockout starts a fresh count
	if !rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil) {
		rec.count = 0
		rec.lockedUntil = time.Time{}
	}

	rec.count++
	rec.lastAttempt = now

	if rec.count >= g.maxAttempts {
		rec.lockedUntil = now.Add(g.lockoutDuration)
		log.Printf("AUTH_LOCKOUT | login=%s attempts=%d until=%s",
			maskIdentifier(identifier), rec.count, rec.lockedUntil.UTC().Format(time.RFC3339))
		return true
	}
	return false
}

// RecordSuccess clears the failure count for identifier.
func (g *LoginGuard) RecordSuccess(identifier string) {
	g.mu.Lock()
	delete(g.attempts, identifier)
	g.mu.Unlock()
}

// Cleanup drops idle client buckets and stale, unlocked attempt records.
func (g *LoginGuard) Cleanup(maxIdle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for client, cl := range g.clients {
		if now.Sub(cl.lastSeen) > maxIdle {
			delete(g.clients, client)
			n++
		}
	}
	for id, rec := range g.attempts {
		if now.Before(rec.lockedUntil) {
			continue
		}
		if now.Sub(rec.lastAttempt) > maxIdle {
			delete(g.attempts, id)
			n++
		}
	}
	return n
}

// maskIdentifier keeps logs free of full account names.
func maskIdentifier(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}
	return string(r[:2]) + "****" + string(r[len(r)-2:])
}
