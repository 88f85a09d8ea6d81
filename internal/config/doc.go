// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for zaura.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServerConfig: HTTP listen address, CORS, rate limit, timeouts
//   - AuthConfig: Session lifetime, lockout and MFA settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (ZAURA_*)
//   - ~/.zaura/config.toml (or $ZAURA_HOME/config.toml)
//   - ~/.zaura/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go config.Watch(ctx, path, 0, func(c *config.Config) {
//	    srv.ApplyReload(c.Server.CORSOrigins, c.Server.RateLimitPerMinute)
//	})
package config
