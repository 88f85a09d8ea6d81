// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command dispatch, usage text and shared plumbing.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/jeranaias/zaura/internal/config"
	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdServe Command = iota
	CmdUser
	CmdTask
	CmdConversation
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// commandNames maps command words and aliases to commands.
var commandNames = map[string]Command{
	"serve":         CmdServe,
	"server":        CmdServe,
	"user":          CmdUser,
	"users":         CmdUser,
	"task":          CmdTask,
	"tasks":         CmdTask,
	"conversation":  CmdConversation,
	"conversations": CmdConversation,
	"conv":          CmdConversation,
	"config":        CmdConfig,
	"version":       CmdVersion,
	"help":          CmdHelp,
}

// String returns the canonical command word.
func (c Command) String() string {
	switch c {
	case CmdServe:
		return "serve"
	case CmdUser:
		return "user"
	case CmdTask:
		return "task"
	case CmdConversation:
		return "conversation"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	}
	return "unknown"
}

const usageText = `zaura - personal assistant backend

Usage:
  zaura [serve]                       Run the HTTP API (default)
  zaura user <subcommand>             Manage accounts
  zaura task list --user <login>      List a user's tasks
  zaura conversation <subcommand>     Read and export conversations
  zaura config <subcommand>           Inspect and edit configuration
  zaura version                       Show version information
  zaura help                          Show this help

Serve:
  zaura serve [--addr HOST:PORT]      Listen address overrides config

User Commands:
  zaura user create --email E --username U [--name N] [--password-stdin]
                                      Create an account (prompts for the password)
  zaura user list [--json]            List accounts
  zaura user disable <login>          Disable an account
  zaura user enable <login>           Re-enable an account
  zaura user delete <login> --confirm Delete an account and all of its data

Task Commands:
  zaura task list --user <login>      List tasks, open work first
    --status S                        todo, in_progress, done, canceled
    --priority P                      low, medium, high, urgent
    --tag T                           Only tasks carrying tag T
    --overdue                         Only open tasks past their due date
    --limit N                         At most N tasks
    --json                            Output in JSON format

Conversation Commands:
  zaura conversation list --user <login> [--search Q] [--limit N]
  zaura conversation show <id> --user <login>
                                      Render a conversation as Markdown
  zaura conversation export <id> --user <login> [--format F] [--output DIR]
                                      Write markdown, json or html to a file

Config Commands:
  zaura config show [--json]          Print the effective configuration
  zaura config path                   Print the config file location
  zaura config init [--force]         Write a default config file
  zaura config get <key>              Print one setting (e.g. server.addr)
  zaura config set <key> <value>      Change one setting in the config file
  zaura config keys                   List every setting key

Global Flags:
  --config PATH                       Use PATH instead of ~/.zaura/config.toml

Environment:
  ZAURA_HOME          Config directory (default ~/.zaura)
  ZAURA_ADDR          Listen address
  ZAURA_DB_PATH       SQLite database path
  ZAURA_CORS_ORIGINS  Comma-separated allowed origins
  ZAURA_SESSION_TTL   Session lifetime (hours or Go duration)
  ZAURA_LOG_FILE      Log file path
  NO_COLOR            Disable colored output
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env holds the process streams commands read and write.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive is set when stdin is a terminal a person can answer prompts on
	Interactive bool

	// ReadPassword reads a secret without echo. Nil means no terminal is available.
	ReadPassword func(prompt string) (string, error)

	lines *bufio.Reader
}

// DefaultEnv wires the real process streams.
func DefaultEnv() *Env {
	env := &Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	if IsTTY() {
		env.Interactive = true
		env.ReadPassword = terminalPassword(os.Stderr)
	}
	return env
}

// readLine reads one line from Stdin without its line ending.
func (e *Env) readLine() (string, error) {
	if e.lines == nil {
		e.lines = bufio.NewReader(e.Stdin)
	}
	line, err := e.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a password from stdin when fromStdin is set, else from the terminal.
func (e *Env) readSecret(prompt string, fromStdin bool) (string, error) {
	if fromStdin {
		return e.readLine()
	}
	if e.ReadPassword == nil {
		return "", &TTYRequiredError{Operation: "read a password"}
	}
	return e.ReadPassword(prompt)
}

// =============================================================================
// DISPATCH
// =============================================================================

// Parse splits argv into the command and the arguments after the command word.
// An empty command line means serve.
func Parse(argv []string) (Command, string, *ArgParser) {
	args := NewArgParser(argv)
	name := args.Subcommand()

	if name == "" {
		switch {
		case args.BoolFlag("help") || args.BoolFlag("h"):
			return CmdHelp, "help", args
		case args.BoolFlag("version") || args.BoolFlag("v"):
			return CmdVersion, "version", args
		}
		return CmdServe, "serve", args
	}

	cmd, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return CmdUnknown, name, args.Shift()
	}
	return cmd, name, args.Shift()
}

// Run executes argv and returns the process exit code.
func Run(ctx context.Context, env *Env, argv []string) int {
	cmd, name, args := Parse(argv)
	jsonMode := args.BoolFlag("json")

	if cmd != CmdHelp && (args.BoolFlag("help") || args.BoolFlag("h")) {
		PrintUsage(env.Stdout)
		return ExitSuccess
	}

	var err error
	switch cmd {
	case CmdServe:
		err = runServe(ctx, env, args)
	case CmdUser:
		err = runUser(ctx, env, args)
	case CmdTask:
		err = runTask(ctx, env, args)
	case CmdConversation:
		err = runConversation(ctx, env, args)
	case CmdConfig:
		err = runConfig(env, args)
	case CmdVersion:
		err = runVersion(env, args)
	case CmdHelp:
		PrintUsage(env.Stdout)
	default:
		msg := fmt.Sprintf("unknown command %q", name)
		if suggestion := SuggestCommand(name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		err = &UsageError{Message: msg, Usage: "zaura help"}
	}

	if err != nil {
		DisplayError(env.Stderr, cmd.String(), err, jsonMode)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// VERSION
// =============================================================================

// VersionInfo is the --json payload of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func runVersion(env *Env, args *ArgParser) error {
	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.BoolFlag("json") {
		return NewJSONResponse("version", info).Print(env.Stdout)
	}
	fmt.Fprintf(env.Stdout, "zaura %s\n", info.Version)
	fmt.Fprintf(env.Stdout, "  Commit:   %s\n", info.GitCommit)
	fmt.Fprintf(env.Stdout, "  Built:    %s\n", info.BuildDate)
	fmt.Fprintf(env.Stdout, "  Go:       %s\n", info.GoVersion)
	fmt.Fprintf(env.Stdout, "  Platform: %s\n", info.Platform)
	return nil
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// loadConfig loads --config if given, else the default locations.
func loadConfig(args *ArgParser) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := args.Flag("config"); path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}

// openStore loads configuration and opens the database it names.
func openStore(ctx context.Context, args *ArgParser) (*config.Config, *storage.Store, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// requireUser resolves the --user flag (email or username) to an account.
func requireUser(ctx context.Context, store *storage.Store, args *ArgParser, usage string) (*model.User, error) {
	login := args.Flag("user")
	if login == "" {
		return nil, ErrMissingArgument("--user", usage)
	}
	u, err := store.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", login, err)
	}
	return u, nil
}
