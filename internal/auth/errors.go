// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown login, wrong password or wrong MFA code.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMFARequired is returned when the password is correct but no MFA code was given.
	ErrMFARequired = errors.New("mfa code required")

	// ErrAccountDisabled is returned when the account has been deactivated.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrLockedOut is returned while a login is locked after repeated failures.
	ErrLockedOut = errors.New("too many failed attempts, try again later")

	// ErrRateLimited is returned when a client exceeds the login rate.
	ErrRateLimited = errors.New("too many requests")

	// ErrInvalidSession is returned for unknown, expired or revoked tokens.
	ErrInvalidSession = errors.New("invalid or expired session")

	// ErrMFANotPending is returned by ConfirmMFA when no enrollment was started.
	ErrMFANotPending = errors.New("mfa enrollment not started")

	// ErrMFAAlreadyEnabled is returned when enrolling an account that already uses MFA.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")

	// ErrMFANotEnabled is returned when disabling MFA on an account without it.
	ErrMFANotEnabled = errors.New("mfa not enabled")
)
