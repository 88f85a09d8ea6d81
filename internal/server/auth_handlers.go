// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/jeranaias/zaura/internal/auth"
)

// ============================================================================
// SIGNUP / LOGIN / LOGOUT
// ============================================================================

// handleSignup handles POST /api/auth/signup.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	res, err := s.auth.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	req.Client = GetClientIP(r)

	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	s.auth.Logout(sess.Token)
	log.Printf("LOGOUT | user=%s", sess.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// PROFILE
// ============================================================================

// handleGetMe handles GET /api/users/me.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFromContext(r.Context()))
}

// handleUpdateMe handles PATCH /api/users/me.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd auth.ProfileUpdate
	if !decodeOrReject(w, r, &upd) {
		return
	}

	u, err := s.auth.UpdateProfile(r.Context(), UserFromContext(r.Context()).ID, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ChangePasswordRequest is the body of POST /api/users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword handles POST /api/users/me/password.
// The calling session survives; every other session of the user is revoked.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	err := s.auth.ChangePassword(r.Context(), sess.UserID, sess.Token, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// MFA
// ============================================================================

// MFACodeRequest is the body of POST /api/users/me/mfa/confirm.
type MFACodeRequest struct {
	Code string `json:"code"`
}

// PasswordRequest is the body of DELETE /api/users/me/mfa.
type PasswordRequest struct {
	Password string `json:"password"`
}

// handleBeginMFA handles POST /api/users/me/mfa.
func (s *Server) handleBeginMFA(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.auth.BeginMFAEnrollment(r.Context(), UserFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

// handleConfirmMFA handles POST /api/users/me/mfa/confirm.
func (s *Server) handleConfirmMFA(w http.ResponseWriter, r *http.Request) {
	var req MFACodeRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	err := s.auth.ConfirmMFA(r.Context(), UserFromContext(r.Context()).ID, req.Code)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusBadRequest, "invalid code")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDisableMFA handles DELETE /api/users/me/mfa.
func (s *Server) handleDisableMFA(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	err := s.auth.DisableMFA(r.Context(), UserFromContext(r.Context()).ID, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusForbidden, "password is incorrect")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
