// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// USER LIMITS
// =============================================================================

const (
	// MinPasswordLength is the minimum accepted password length in bytes.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit; longer input would be silently truncated.
	MaxPasswordLength = 72

	// MaxFullNameLength is the maximum length of a full name in runes.
	MaxFullNameLength = 100
)

// PasswordCost is the bcrypt work factor used by SetPassword.
// Tests lower it to bcrypt.MinCost.
var PasswordCost = bcrypt.DefaultCost

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// =============================================================================
// USER TYPE
// =============================================================================

// User is a zaura account.
type User struct {
	// Identity
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Username string `json:"username" db:"username"`
	FullName string `json:"full_name" db:"full_name"`

	// Credentials (never serialized)
	PasswordHash string `json:"-" db:"password_hash"`
	MFASecret    string `json:"-" db:"mfa_secret"`

	// State
	MFAEnabled bool `json:"mfa_enabled" db:"mfa_enabled"`
	IsActive   bool `json:"is_active" db:"is_active"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// NewUser creates an active user with a generated ID.
// Email and username are normalized before validation.
func NewUser(email, username, fullName string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        uuid.New().String(),
		Email:     NormalizeEmail(email),
		Username:  NormalizeUsername(username),
		FullName:  strings.TrimSpace(fullName),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// NormalizeEmail folds an email address to its canonical stored form.
// NFKC collapses compatibility characters (full-width letters etc.) so two
// visually identical addresses cannot register twice.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(email)))
}

// NormalizeUsername applies NFKC and trims surrounding whitespace.
// Case is preserved for display; uniqueness is enforced case-insensitively by storage.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(norm.NFKC.String(username))
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the user's profile fields.
func (u *User) Validate() error {
	var errs ValidationErrors

	if err := validateEmail(u.Email); err != nil {
		errs = append(errs, *err)
	}
	if !usernamePattern.MatchString(u.Username) {
		errs = append(errs, ValidationError{
			Field:   "username",
			Message: "must be 3-32 characters of letters, digits, '_', '.' or '-'",
		})
	}
	if utf8.RuneCountInString(u.FullName) > MaxFullNameLength {
		errs = append(errs, ValidationError{
			Field:   "full_name",
			Message: "must be at most 100 characters",
		})
	}

	return errs.orNil()
}

func validateEmail(email string) *ValidationError {
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

// =============================================================================
// PASSWORDS
// =============================================================================

// ValidatePassword checks password length constraints without hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	if len(password) > MaxPasswordLength {
		return ValidationError{Field: "password", Message: "must be at most 72 bytes"}
	}
	return nil
}

// SetPassword validates and stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.Touch()
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// =============================================================================
// USER METHODS
// =============================================================================

// DisplayName returns the full name, falling back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// RecordLogin stamps a successful login.
func (u *User) RecordLogin(at time.Time) {
	at = at.UTC()
	u.LastLoginAt = &at
}

// Touch bumps UpdatedAt.
func (u *User) Touch() {
	u.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy that shares no pointers with u.
func (u *User) Clone() *User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
