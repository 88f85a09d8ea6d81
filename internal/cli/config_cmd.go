// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Inspecting and editing the configuration file.
package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/zaura/internal/config"
)

// reloadableKeys take effect on a running server without a restart.
var reloadableKeys = map[string]bool{
	"server.cors_origins":          true,
	"server.rate_limit_per_minute": true,
}

func runConfig(env *Env, args *ArgParser) error {
	switch sub := args.Subcommand(); sub {
	case "show", "":
		return configShow(env, args)
	case "path":
		return configPath(env, args)
	case "init":
		return configInit(env, args)
	case "get":
		return configGet(env, args)
	case "set":
		return configSet(env, args)
	case "keys":
		return configKeys(env, args)
	default:
		return &UsageError{Message: fmt.Sprintf("unknown config subcommand %q", sub), Usage: "zaura config show|path|init|get|set|keys"}
	}
}

// configFilePath is --config when given, else the default TOML location.
func configFilePath(args *ArgParser) (string, error) {
	if path := args.Flag("config"); path != "" {
		return path, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return path, nil
}

// configShow prints the effective configuration (file, defaults and environment combined).
func configShow(env *Env, args *ArgParser) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if args.BoolFlag("json") {
		return NewJSONResponse("config show", cfg).Print(env.Stdout)
	}
	fmt.Fprintln(env.Stdout, TitleStyle.Render("Effective configuration"))
	fmt.Fprint(env.Stdout, cfg.String())
	return nil
}

func configPath(env *Env, args *ArgParser) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	state := "not created yet; run: zaura config init"
	if exists(path) {
		state = "exists"
	}
	fmt.Fprintf(env.Stdout, "%s %s\n", path, DimStyle.Render("("+state+")"))
	return nil
}

// configInit writes a default config file, refusing to overwrite without --force.
func configInit(env *Env, args *ArgParser) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	if exists(path) && !args.BoolFlag("force") {
		return &UsageError{Message: "config file already exists: " + path, Usage: "zaura config init --force"}
	}
	if err := saveConfigFile(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s %s\n", SuccessStyle.Render("Wrote"), path)
	return nil
}

func configGet(env *Env, args *ArgParser) error {
	key := args.Positional(1)
	if key == "" {
		return ErrMissingArgument("key", "zaura config get <key>")
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	value, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: "zaura config keys"}
	}
	fmt.Fprintln(env.Stdout, formatConfigValue(value))
	return nil
}

// configSet edits one key in the file. Environment overrides are not written back.
func configSet(env *Env, args *ArgParser) error {
	key := args.Positional(1)
	if key == "" || args.PositionalCount() < 3 {
		return ErrMissingArgument("key and value", "zaura config set <key> <value>")
	}
	value := strings.Join(args.PositionalFrom(2), " ")

	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	cfg := config.Default()
	if exists(path) {
		cfg = &config.Config{}
		load := config.LoadTOML
		if strings.HasSuffix(path, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return &ConfigError{Err: err}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error(), Usage: "zaura config keys"}
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return err
	}

	current, _ := cfg.Get(key)
	fmt.Fprintf(env.Stdout, "%s %s = %s\n", SuccessStyle.Render("Set"), key, formatConfigValue(current))
	if reloadableKeys[strings.ToLower(key)] {
		fmt.Fprintln(env.Stdout, DimStyle.Render("A running server applies this change automatically."))
	} else {
		fmt.Fprintln(env.Stdout, DimStyle.Render("Restart the server to apply this change."))
	}
	return nil
}

// configKeys lists every key with its effective value.
func configKeys(env *Env, args *ArgParser) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	tbl := newTable("KEY", "VALUE")
	for _, key := range config.GetAllKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		tbl.add(key, formatConfigValue(value))
	}
	tbl.render(env.Stdout)
	return nil
}

func saveConfigFile(cfg *config.Config, path string) error {
	save := config.SaveTOML
	if strings.HasSuffix(path, ".json") {
		save = config.SaveJSON
	}
	if err := save(cfg, path); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

func formatConfigValue(value interface{}) string {
	if list, ok := value.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(value)
}
