// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/zaura/internal/model"
)

// newTestStore opens an in-memory store closed at test cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// createTestUser inserts a user with the given username.
func createTestUser(t *testing.T, store *Store, username string) *model.User {
	t.Helper()
	u, err := model.NewUser(username+"@example.com", username, "")
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

func TestOpen_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "zaura.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	u := createTestUser(t, store, "alice")
	require.NoError(t, store.Close())

	// Reopening applies the schema again without error and keeps data
	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.NoError(t, store.Ping(ctx))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestLikePattern(t *testing.T) {
	require.Equal(t, `%50\%%`, likePattern("50%"))
	require.Equal(t, `%a\_b%`, likePattern("a_b"))
}
