// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempHome points ZAURA_HOME at a fresh directory.
func useTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZAURA_HOME", dir)
	return dir
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, 2*time.Hour, cfg.Auth.IdleTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutDuration())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout())
	assert.True(t, cfg.Logging.Requests)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"bad port", func(c *Config) { c.Server.Addr = "localhost:99999" }, "server.addr"},
		{"origin with path", func(c *Config) { c.Server.CORSOrigins = []string{"https://a.com/app"} }, "server.cors_origins"},
		{"origin without scheme", func(c *Config) { c.Server.CORSOrigins = []string{"a.com"} }, "server.cors_origins"},
		{"bad wildcard", func(c *Config) { c.Server.CORSOrigins = []string{"*."} }, "server.cors_origins"},
		{"negative rate", func(c *Config) { c.Server.RateLimitPerMinute = -1 }, "server.rate_limit_per_minute"},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeoutSecs = 0 }, "server.read_timeout_secs"},
		{"empty db path", func(c *Config) { c.Database.Path = " " }, "database.path"},
		{"ttl too long", func(c *Config) { c.Auth.SessionTTLHours = 10000 }, "auth.session_ttl_hours"},
		{"idle beyond ttl", func(c *Config) { c.Auth.SessionTTLHours = 1; c.Auth.IdleTimeoutMinutes = 61 }, "auth.idle_timeout_minutes"},
		{"zero attempts", func(c *Config) { c.Auth.MaxLoginAttempts = 0 }, "auth.max_login_attempts"},
		{"issuer with colon", func(c *Config) { c.Auth.MFAIssuer = "a:b" }, "auth.mfa_issuer"},
		{"zero cache", func(c *Config) { c.Auth.UserCacheSize = 0 }, "auth.user_cache_size"},
		{"bad export format", func(c *Config) { c.Export.Format = "pdf" }, "export.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var errs ValidateErrors
			require.ErrorAs(t, err, &errs)
			require.Len(t, errs, 1, err.Error())
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}

	t.Run("wildcards accepted", func(t *testing.T) {
		cfg := Default()
		cfg.Server.CORSOrigins = []string{"*", "*.zaura.dev", "https://app.zaura.dev:8443"}
		cfg.Server.RateLimitPerMinute = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	useTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestSaveAndLoad_TOML(t *testing.T) {
	home := useTempHome(t)

	cfg := Default()
	cfg.Server.Addr = "0.0.0.0:9000"
	cfg.Server.CORSOrigins = []string{"https://app.zaura.dev"}
	cfg.Auth.MaxLoginAttempts = 3
	cfg.Logging.Requests = false

	path, err := ConfigPathTOML()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), path)
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", loaded.Server.Addr)
	assert.Equal(t, []string{"https://app.zaura.dev"}, loaded.Server.CORSOrigins)
	assert.Equal(t, 3, loaded.Auth.MaxLoginAttempts)
	assert.False(t, loaded.Logging.Requests)
}

func TestLoadFromPath_PartialFileFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":7000\"\n"), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, Default().Auth, cfg.Auth)
	assert.Equal(t, "markdown", cfg.Export.Format)

	// Loading tightens permissions
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromPath_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Database.Path = "/var/lib/zaura/zaura.db"
	require.NoError(t, SaveJSON(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/zaura/zaura.db", loaded.Database.Path)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[server\n"), 0600))
	_, err := LoadFromPath(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[export]\nformat = \"pdf\"\n"), 0600))
	_, err = LoadFromPath(invalid)
	assert.ErrorContains(t, err, "export.format")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ZAURA_ADDR", ":9999")
	t.Setenv("ZAURA_DB_PATH", "/tmp/z.db")
	t.Setenv("ZAURA_CORS_ORIGINS", "https://a.dev, ,https://b.dev")
	t.Setenv("ZAURA_SESSION_TTL", "90m")
	t.Setenv("ZAURA_LOG_FILE", "/tmp/zaura.log")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/z.db", cfg.Database.Path)
	assert.Equal(t, []string{"https://a.dev", "https://b.dev"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 2, cfg.Auth.SessionTTLHours)
	assert.Equal(t, "/tmp/zaura.log", cfg.Logging.File)

	t.Setenv("ZAURA_SESSION_TTL", "12")
	t.Setenv("ZAURA_CORS_ORIGINS", "")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 12, cfg.Auth.SessionTTLHours)
	assert.Empty(t, cfg.Server.CORSOrigins, "empty variable disables CORS")
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("server.addr")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8787", v)

	require.NoError(t, cfg.Set("auth.lockout_minutes", "30"))
	assert.Equal(t, 30, cfg.Auth.LockoutMinutes)

	require.NoError(t, cfg.Set("server.cors_origins", "https://a.dev,https://b.dev"))
	assert.Equal(t, []string{"https://a.dev", "https://b.dev"}, cfg.Server.CORSOrigins)

	require.NoError(t, cfg.Set("logging.requests", "no"))
	assert.False(t, cfg.Logging.Requests)

	require.NoError(t, cfg.Set("auth.user_cache_size", 64))
	assert.Equal(t, 64, cfg.Auth.UserCacheSize)

	assert.Error(t, cfg.Set("auth.lockout_minutes", "soon"))
	assert.Error(t, cfg.Set("logging.requests", "maybe"))
	assert.Error(t, cfg.Set("server", "x"))
	_, err = cfg.Get("server.nope")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys_Resolvable(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_String(t *testing.T) {
	out := Default().String()
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, `addr = "127.0.0.1:8787"`)
	assert.Contains(t, out, "[auth]")
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(c *Config) { changes <- c })
	}()

	// Give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)

	// An invalid file is skipped
	require.NoError(t, os.WriteFile(path, []byte("[export]\nformat = \"pdf\"\n"), 0600))
	time.Sleep(100 * time.Millisecond)

	updated := Default()
	updated.Server.RateLimitPerMinute = 7
	updated.Server.CORSOrigins = []string{"https://reloaded.dev"}
	require.NoError(t, SaveTOML(updated, path))

	select {
	case c := <-changes:
		assert.Equal(t, 7, c.Server.RateLimitPerMinute)
		assert.Equal(t, []string{"https://reloaded.dev"}, c.Server.CORSOrigins)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "config.toml"), 0, func(*Config) {})
	assert.Error(t, err)
}
