// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/zaura/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete zaura configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server   ServerConfig   `toml:"server" json:"server"`
	Database DatabaseConfig `toml:"database" json:"database"`
	Auth     AuthConfig     `toml:"auth" json:"auth"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	Export   ExportConfig   `toml:"export" json:"export"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	// Addr is the listen address (host:port)
	Addr string `toml:"addr" json:"addr"`
	// CORSOrigins lists origins allowed to call the API from a browser.
	// "*" allows any origin; "*.example.com" allows subdomains. Reloadable.
	CORSOrigins []string `toml:"cors_origins" json:"cors_origins"`
	// RateLimitPerMinute is the per-IP request budget (0 = unlimited). Reloadable.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	ReadTimeoutSecs    int `toml:"read_timeout_secs" json:"read_timeout_secs"`
	WriteTimeoutSecs   int `toml:"write_timeout_secs" json:"write_timeout_secs"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	// Path is the SQLite file; "~" expands to the home directory, ":memory:" keeps nothing
	Path string `toml:"path" json:"path"`
}

// AuthConfig contains account and session settings.
type AuthConfig struct {
	SessionTTLHours    int `toml:"session_ttl_hours" json:"session_ttl_hours"`
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes" json:"idle_timeout_minutes"`
	// MaxLoginAttempts consecutive failures lock the login for LockoutMinutes
	MaxLoginAttempts   int    `toml:"max_login_attempts" json:"max_login_attempts"`
	LockoutMinutes     int    `toml:"lockout_minutes" json:"lockout_minutes"`
	LoginRatePerMinute int    `toml:"login_rate_per_minute" json:"login_rate_per_minute"`
	MFAIssuer          string `toml:"mfa_issuer" json:"mfa_issuer"`
	UserCacheSize      int    `toml:"user_cache_size" json:"user_cache_size"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	// File receives log output; empty means stderr
	File string `toml:"file" json:"file"`
	// Requests enables one REQUEST line per HTTP request
	Requests bool `toml:"requests" json:"requests"`
}

// ExportConfig contains conversation export defaults for the CLI.
type ExportConfig struct {
	Dir    string `toml:"dir" json:"dir"`
	Format string `toml:"format" json:"format"`
}

// Default returns a Config with all default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Addr:               "127.0.0.1:8787",
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 120,
			ReadTimeoutSecs:    30,
			WriteTimeoutSecs:   60,
		},
		Database: DatabaseConfig{
			Path: "~/.zaura/zaura.db",
		},
		Auth: AuthConfig{
			SessionTTLHours:    24,
			IdleTimeoutMinutes: 120,
			MaxLoginAttempts:   5,
			LockoutMinutes:     15,
			LoginRatePerMinute: 20,
			MFAIssuer:          "Zaura",
			UserCacheSize:      1024,
		},
		Logging: LoggingConfig{
			Requests: true,
		},
		Export: ExportConfig{
			Dir:    ".",
			Format: "markdown",
		},
	}
}

// =============================================================================
// DURATIONS
// =============================================================================

// ReadTimeout returns the HTTP read timeout.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSecs) * time.Second
}

// SessionTTL returns the absolute session lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// IdleTimeout returns the sliding idle timeout.
func (a AuthConfig) IdleTimeout() time.Duration {
	return time.Duration(a.IdleTimeoutMinutes) * time.Minute
}

// LockoutDuration returns how long a login stays locked.
func (a AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(a.LockoutMinutes) * time.Minute
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the zaura configuration directory path.
// ZAURA_HOME overrides the default ~/.zaura.
func ConfigDir() (string, error) {
	if dir := os.Getenv("ZAURA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".zaura"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config directory.
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
// Logging.Requests is a plain bool and keeps whatever the file says.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = defaults.Server.ReadTimeoutSecs
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = defaults.Server.WriteTimeoutSecs
	}

	// Database
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaults.Database.Path
	}

	// Auth
	if cfg.Auth.SessionTTLHours == 0 {
		cfg.Auth.SessionTTLHours = defaults.Auth.SessionTTLHours
	}
	if cfg.Auth.IdleTimeoutMinutes == 0 {
		cfg.Auth.IdleTimeoutMinutes = defaults.Auth.IdleTimeoutMinutes
	}
	if cfg.Auth.MaxLoginAttempts == 0 {
		cfg.Auth.MaxLoginAttempts = defaults.Auth.MaxLoginAttempts
	}
	if cfg.Auth.LockoutMinutes == 0 {
		cfg.Auth.LockoutMinutes = defaults.Auth.LockoutMinutes
	}
	if cfg.Auth.LoginRatePerMinute == 0 {
		cfg.Auth.LoginRatePerMinute = defaults.Auth.LoginRatePerMinute
	}
	if cfg.Auth.MFAIssuer == "" {
		cfg.Auth.MFAIssuer = defaults.Auth.MFAIssuer
	}
	if cfg.Auth.UserCacheSize == 0 {
		cfg.Auth.UserCacheSize = defaults.Auth.UserCacheSize
	}

	// Export
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = defaults.Export.Dir
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = defaults.Export.Format
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to a TOML file atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	err := util.AtomicWrite(path, 0600, func(w io.Writer) error {
		if _, err := io.WriteString(w, "# zaura configuration\n# Keys: zaura config keys. Reloaded live: server.cors_origins, server.rate_limit_per_minute\n\n"); err != nil {
			return err
		}
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// validExportFormats mirrors the formats the export package understands.
var validExportFormats = map[string]bool{"markdown": true, "md": true, "json": true, "html": true, "htm": true}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if _, port, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "invalid address '%s', expected host:port", c.Server.Addr)
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		add("server.addr", "invalid port '%s'", port)
	}
	for _, origin := range c.Server.CORSOrigins {
		if err := validateOrigin(origin); err != nil {
			add("server.cors_origins", "%v", err)
		}
	}
	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute", "must be >= 0 (0 disables limiting)")
	}
	if c.Server.ReadTimeoutSecs < 1 || c.Server.ReadTimeoutSecs > 3600 {
		add("server.read_timeout_secs", "must be between 1 and 3600, got %d", c.Server.ReadTimeoutSecs)
	}
	if c.Server.WriteTimeoutSecs < 1 || c.Server.WriteTimeoutSecs > 3600 {
		add("server.write_timeout_secs", "must be between 1 and 3600, got %d", c.Server.WriteTimeoutSecs)
	}

	// Database
	if strings.TrimSpace(c.Database.Path) == "" {
		add("database.path", "is required")
	}

	// Auth
	if c.Auth.SessionTTLHours < 1 || c.Auth.SessionTTLHours > 24*30 {
		add("auth.session_ttl_hours", "must be between 1 and 720, got %d", c.Auth.SessionTTLHours)
	}
	if c.Auth.IdleTimeoutMinutes < 1 {
		add("auth.idle_timeout_minutes", "must be at least 1, got %d", c.Auth.IdleTimeoutMinutes)
	} else if c.Auth.IdleTimeout() > c.Auth.SessionTTL() {
		add("auth.idle_timeout_minutes", "must not exceed the session TTL")
	}
	if c.Auth.MaxLoginAttempts < 1 || c.Auth.MaxLoginAttempts > 100 {
		add("auth.max_login_attempts", "must be between 1 and 100, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.LockoutMinutes < 1 {
		add("auth.lockout_minutes", "must be at least 1, got %d", c.Auth.LockoutMinutes)
	}
	if c.Auth.LoginRatePerMinute < 1 {
		add("auth.login_rate_per_minute", "must be at least 1, got %d", c.Auth.LoginRatePerMinute)
	}
	if strings.TrimSpace(c.Auth.MFAIssuer) == "" || strings.Contains(c.Auth.MFAIssuer, ":") {
		add("auth.mfa_issuer", "must be non-empty and must not contain ':'")
	}
	if c.Auth.UserCacheSize < 1 {
		add("auth.user_cache_size", "must be at least 1, got %d", c.Auth.UserCacheSize)
	}

	// Export
	if !validExportFormats[strings.ToLower(c.Export.Format)] {
		add("export.format", "invalid format '%s', must be one of: markdown, json, html", c.Export.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateOrigin accepts "*", "*.domain" or an http(s) origin without a path.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	if rest, ok := strings.CutPrefix(origin, "*."); ok {
		if rest == "" || strings.ContainsAny(rest, "/:*") {
			return fmt.Errorf("invalid wildcard origin '%s'", origin)
		}
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid origin '%s', expected scheme://host[:port]", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("origin '%s' must not contain a path", origin)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - ZAURA_ADDR: overrides server.addr
//   - ZAURA_DB_PATH: overrides database.path
//   - ZAURA_CORS_ORIGINS: comma separated, overrides server.cors_origins
//   - ZAURA_SESSION_TTL: hours ("12") or a duration ("90m"), overrides auth.session_ttl_hours
//   - ZAURA_LOG_FILE: overrides logging.file
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("ZAURA_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if path := os.Getenv("ZAURA_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	if origins, ok := os.LookupEnv("ZAURA_CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(origins)
	}

	if ttl := os.Getenv("ZAURA_SESSION_TTL"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil {
			c.Auth.SessionTTLHours = hours
		} else if d, err := time.ParseDuration(ttl); err == nil {
			// Round up so a sub-hour duration never disables sessions
			c.Auth.SessionTTLHours = int((d + time.Hour - 1) / time.Hour)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring invalid ZAURA_SESSION_TTL %q\n", ttl)
		}
	}

	if file := os.Getenv("ZAURA_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "server.addr").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "auth.lockout_minutes").
// String values are converted to the field's type; lists are comma separated.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the dotted key to a leaf field.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				lower := strings.ToLower(strVal)
				if lower != "yes" && lower != "no" {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
				boolVal = lower == "yes"
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(splitList(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server.addr",
		"server.cors_origins",
		"server.rate_limit_per_minute",
		"server.read_timeout_secs",
		"server.write_timeout_secs",
		"database.path",
		"auth.session_ttl_hours",
		"auth.idle_timeout_minutes",
		"auth.max_login_attempts",
		"auth.lockout_minutes",
		"auth.login_rate_per_minute",
		"auth.mfa_issuer",
		"auth.user_cache_size",
		"logging.file",
		"logging.requests",
		"export.dir",
		"export.format",
	}
}

// String renders the config as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
