// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - The serve command: run the HTTP API until interrupted.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jeranaias/zaura/internal/auth"
	"github.com/jeranaias/zaura/internal/config"
	"github.com/jeranaias/zaura/internal/server"
	"github.com/jeranaias/zaura/internal/storage"
)

func runServe(ctx context.Context, env *Env, args *ArgParser) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if addr := args.Flag("addr"); addr != "" {
		cfg.Server.Addr = addr
		if err := cfg.Validate(); err != nil {
			return &ConfigError{Err: err}
		}
	}

	closeLog, err := setupLogging(cfg.Logging.File)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer closeLog()

	store, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	server.Version = Version
	srv := server.New(serverOptions(cfg), store, auth.NewService(store, authConfig(cfg)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		watchConfig(ctx, args, srv)
	}()

	fmt.Fprintf(env.Stderr, "zaura %s listening on %s (database %s)\n", Version, cfg.Server.Addr, cfg.Database.Path)
	err = srv.Start(ctx)

	cancel()
	<-watchDone
	return err
}

// serverOptions maps configuration onto server options.
func serverOptions(cfg *config.Config) server.Options {
	opts := server.Options{
		Addr:               cfg.Server.Addr,
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		ReadTimeout:        cfg.Server.ReadTimeout(),
		WriteTimeout:       cfg.Server.WriteTimeout(),
	}
	if cfg.Logging.Requests {
		opts.RequestLogger = log.Default()
	}
	return opts
}

// authConfig maps configuration onto auth settings.
func authConfig(cfg *config.Config) auth.Config {
	out := auth.DefaultConfig()
	out.SessionTTL = cfg.Auth.SessionTTL()
	out.IdleTimeout = cfg.Auth.IdleTimeout()
	out.MaxLoginAttempts = cfg.Auth.MaxLoginAttempts
	out.LockoutDuration = cfg.Auth.LockoutDuration()
	out.LoginRatePerMinute = cfg.Auth.LoginRatePerMinute
	out.MFAIssuer = cfg.Auth.MFAIssuer
	out.UserCacheSize = cfg.Auth.UserCacheSize
	return out
}

// setupLogging points the standard logger at path. The returned func restores stderr.
func setupLogging(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// watchConfig applies reloadable settings whenever the config file changes.
// It blocks until ctx is done.
func watchConfig(ctx context.Context, args *ArgParser, srv *server.Server) {
	path := args.Flag("config")
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			log.Printf("CONFIG_WATCH_DISABLED | error=%v", err)
			return
		}
		if jsonPath, err := config.ConfigPathJSON(); err == nil && !exists(path) && exists(jsonPath) {
			path = jsonPath
		}
	}

	err := config.Watch(ctx, path, config.DefaultReloadDebounce, func(next *config.Config) {
		srv.ApplyReload(next.Server.CORSOrigins, next.Server.RateLimitPerMinute)
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_DISABLED | path=%s error=%v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
