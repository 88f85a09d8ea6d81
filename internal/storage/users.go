// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jeranaias/zaura/internal/model"
)

const userColumns = `id, email, username, full_name, password_hash, mfa_secret,
	mfa_enabled, is_active, created_at, updated_at, last_login_at`

// CreateUser inserts a new user. Email and username must be unique.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :username, :full_name, :password_hash, :mfa_secret,
			:mfa_enabled, :is_active, :created_at, :updated_at, :last_login_at)`, u)
	if isUniqueViolation(err) {
		return fmt.Errorf("user: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// GetUserByLogin loads a user by email or username (case-insensitive).
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users
		WHERE email = ? OR username = ? LIMIT 1`,
		model.NormalizeEmail(login), model.NormalizeUsername(login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// UpdateUser saves every mutable column of u.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET
			email = :email, username = :username, full_name = :full_name,
			password_hash = :password_hash, mfa_secret = :mfa_secret,
			mfa_enabled = :mfa_enabled, is_active = :is_active,
			updated_at = :updated_at, last_login_at = :last_login_at
		WHERE id = :id`, u)
	if isUniqueViolation(err) {
		return fmt.Errorf("user: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

// DeleteUser removes a user together with their tasks and conversations.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRow(res)
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	users := []*model.User{}
	if err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, username`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// requireRow maps a zero-row update or delete to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
