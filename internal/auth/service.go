// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config tunes the Service.
type Config struct {
	SessionTTL         time.Duration
	IdleTimeout        time.Duration
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	LoginRatePerMinute int
	MFAIssuer          string
	UserCacheSize      int
	CleanupInterval    time.Duration

	// UserCacheTTL bounds how long a cached account is trusted, so changes made
	// by another process (the CLI disabling a user) reach a running server.
	UserCacheTTL time.Duration
}

// DefaultConfig returns the default auth settings.
func DefaultConfig() Config {
	return Config{
		SessionTTL:         24 * time.Hour,
		IdleTimeout:        2 * time.Hour,
		MaxLoginAttempts:   5,
		LockoutDuration:    15 * time.Minute,
		LoginRatePerMinute: 20,
		MFAIssuer:          "Zaura",
		UserCacheSize:      1024,
		CleanupInterval:    time.Minute,
		UserCacheTTL:       30 * time.Second,
	}
}

// UserStore is the persistence the Service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

// =============================================================================
// REQUESTS
// =============================================================================

// SignupRequest carries the fields needed to create an account.
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// LoginRequest carries login credentials. Login is an email or username.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`

	// Client identifies the caller for throttling (usually the remote IP)
	Client string `json:"-"`
}

// LoginResult is returned on successful signup or login.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// ProfileUpdate holds optional profile changes; nil fields are left alone.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// =============================================================================
// SERVICE
// =============================================================================

// Service implements account and session operations.
type Service struct {
	store    UserStore
	sessions *SessionManager
	guard    *LoginGuard
	cache    *lru.Cache[string, cachedUser]
	config   Config
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates a Service backed by store.
func NewService(store UserStore, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.MFAIssuer == "" {
		cfg.MFAIssuer = def.MFAIssuer
	}
	if cfg.UserCacheSize <= 0 {
		cfg.UserCacheSize = def.UserCacheSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.UserCacheTTL <= 0 {
		cfg.UserCacheTTL = def.UserCacheTTL
	}

	// Size is positive so New cannot fail
	cache, _ := lru.New[string, cachedUser](cfg.UserCacheSize)

	return &Service{
		store:    store,
		sessions: NewSessionManager(cfg.SessionTTL, cfg.IdleTimeout),
		guard:    NewLoginGuard(cfg.MaxLoginAttempts, cfg.LockoutDuration, cfg.LoginRatePerMinute),
		cache:    cache,
		config:   cfg,
		now:      time.Now,
	}
}

// Sessions exposes the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Run periodically removes expired sessions and stale throttle state until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.sessions.Cleanup()
			s.guard.Cleanup(s.config.LockoutDuration + time.Hour)
			if removed > 0 {
				log.Printf("SESSION_CLEANUP | removed=%d remaining=%d", removed, s.sessions.Count())
			}
		}
	}
}

// Signup creates an account and logs it in.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*LoginResult, error) {
	u, err := model.NewUser(req.Email, req.Username, req.FullName)
	if err != nil {
		return nil, err
	}
	if err := u.SetPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	log.Printf("USER_SIGNUP | user=%s", u.ID)
	return s.startSession(u)
}

// Login verifies credentials and starts a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !s.guard.Allow(req.Client) {
		log.Printf("LOGIN_THROTTLED | client=%s", req.Client)
		return nil, ErrRateLimited
	}

	identifier := model.NormalizeEmail(req.Login)
	if identifier == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.store.GetUserByLogin(ctx, req.Login)
	if errors.Is(err, storage.ErrNotFound) {
		key := unknownLoginKey(identifier)
		if err := s.guard.Check(key); err != nil {
			return nil, err
		}
		// Spend the same bcrypt time as a real check so unknown logins are not distinguishable
		s.burnPasswordCheck(req.Password)
		s.fail(key, maskIdentifier(identifier), req.Client, "unknown_login")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// Failures count against the account, whichever of its logins was typed
	key := accountKey(u.ID)
	if err := s.guard.Check(key); err != nil {
		return nil, err
	}
	if !u.CheckPassword(req.Password) {
		s.fail(key, u.ID, req.Client, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		log.Printf("LOGIN_FAILED | user=%s reason=disabled", u.ID)
		return nil, ErrAccountDisabled
	}
	if u.MFAEnabled {
		if strings.TrimSpace(req.Code) == "" {
			return nil, ErrMFARequired
		}
		if !validateTOTP(req.Code, u.MFASecret, s.now()) {
			s.fail(key, u.ID, req.Client, "bad_mfa_code")
			return nil, ErrInvalidCredentials
		}
	}

	s.guard.RecordSuccess(key)
	u.RecordLogin(s.now())
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.cache.Remove(u.ID)

	log.Printf("LOGIN_SUCCESS | user=%s client=%s mfa=%t", u.ID, req.Client, u.MFAEnabled)
	return s.startSession(u)
}

// Logout revokes a session token.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}

// Authenticate resolves a bearer token to its session and active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, *Session, error) {
	if token == "" {
		return nil, nil, ErrInvalidSession
	}
	sess, err := s.sessions.Validate(token)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.User(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		s.sessions.RevokeUser(sess.UserID, "")
		return nil, nil, ErrInvalidSession
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		s.sessions.RevokeUser(u.ID, "")
		return nil, nil, ErrAccountDisabled
	}
	return u, sess, nil
}

// cachedUser is a user snapshot and the time it was read from storage.
type cachedUser struct {
	user     *model.User
	loadedAt time.Time
}

// User loads a user through the cache. The returned value is a private copy.
func (s *Service) User(ctx context.Context, id string) (*model.User, error) {
	if c, ok := s.cache.Get(id); ok && s.now().Sub(c.loadedAt) < s.config.UserCacheTTL {
		return c.user.Clone(), nil
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, cachedUser{user: u.Clone(), loadedAt: s.now()})
	return u, nil
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		u.Email = model.NormalizeEmail(*upd.Email)
	}
	if upd.Username != nil {
		u.Username = model.NormalizeUsername(*upd.Username)
	}
	if upd.FullName != nil {
		u.FullName = strings.TrimSpace(*upd.FullName)
	}
	u.Touch()
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the password and ends every other session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, currentToken, oldPassword, newPassword string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.CheckPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	if err := u.SetPassword(newPassword); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return err
	}
	revoked := s.sessions.RevokeUser(userID, currentToken)
	log.Printf("PASSWORD_CHANGED | user=%s sessions_revoked=%d", userID, revoked)
	return nil
}

// SetActive enables or disables an account. Disabling ends all of its sessions.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.IsActive = active
	u.Touch()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	if !active {
		s.sessions.RevokeUser(userID, "")
	}
	return nil
}

// DeleteUser removes the account with its data and ends its sessions.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.cache.Remove(userID)
	n := s.sessions.RevokeUser(userID, "")
	log.Printf("USER_DELETED | user=%s sessions_revoked=%d", userID, n)
	return nil
}

// =============================================================================
// MFA
// =============================================================================

// BeginMFAEnrollment generates a new TOTP secret for the user.
// MFA is not enforced until ConfirmMFA succeeds.
func (s *Service) BeginMFAEnrollment(ctx context.Context, userID string) (*MFAEnrollment, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	key, err := generateTOTP(s.config.MFAIssuer, u.Email)
	if err != nil {
		return nil, err
	}
	u.MFASecret = key.Secret()
	u.Touch()
	if err := s.save(ctx, u); err != nil {
		return nil, err
	}
	return &MFAEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmMFA activates MFA once the user proves they hold the secret.
func (s *Service) ConfirmMFA(ctx context.Context, userID, code string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if u.MFASecret == "" {
		return ErrMFANotPending
	}
	if !validateTOTP(code, u.MFASecret, s.now()) {
		return ErrInvalidCredentials
	}
	u.MFAEnabled = true
	u.Touch()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	log.Printf("MFA_ENABLED | user=%s", userID)
	return nil
}

// DisableMFA turns MFA off after re-checking the password.
func (s *Service) DisableMFA(ctx context.Context, userID, password string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.MFAEnabled {
		return ErrMFANotEnabled
	}
	if !u.CheckPassword(password) {
		return ErrInvalidCredentials
	}
	u.MFAEnabled = false
	u.MFASecret = ""
	u.Touch()
	if err := s.save(ctx, u); err != nil {
		return err
	}
	log.Printf("MFA_DISABLED | user=%s", userID)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) startSession(u *model.User) (*LoginResult, error) {
	sess, err := s.sessions.Create(u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// save persists u and invalidates its cache entry.
func (s *Service) save(ctx context.Context, u *model.User) error {
	s.cache.Remove(u.ID)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Service) fail(key, who, client, reason string) {
	locked := s.guard.RecordFailure(key)
	log.Printf("LOGIN_FAILED | login=%s client=%s reason=%s locked=%t", who, client, reason, locked)
}

// Lockout keys. Known accounts are keyed by ID so email and username share
// one failure counter.
func accountKey(userID string) string { return "user:" + userID }

func unknownLoginKey(identifier string) string { return "login:" + identifier }

func (s *Service) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("zaura-unknown-login"), model.PasswordCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}
