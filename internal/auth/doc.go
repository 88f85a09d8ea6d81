// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides account authentication and session management.
//
// # Accounts
//
// The Service handles signup, login (by email or username), password changes
// and TOTP multi-factor enrollment on top of any UserStore:
//
//	svc := auth.NewService(store, auth.DefaultConfig())
//	res, err := svc.Login(ctx, auth.LoginRequest{Login: "alice", Password: pw})
//	if errors.Is(err, auth.ErrMFARequired) {
//	    // ask for the authenticator code and retry with Code set
//	}
//
// # Sessions
//
// Sessions are opaque bearer tokens held in memory. Each has an absolute
// lifetime and an idle timeout; every successful Authenticate slides the idle
// window. Run starts the periodic cleanup loop and returns when ctx is done.
//
// # Brute-Force Protection
//
// Logins are throttled per client with a token bucket, and an account is
// locked for LockoutDuration after MaxLoginAttempts consecutive failures.
package auth
