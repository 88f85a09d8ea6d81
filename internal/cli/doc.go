// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the zaura command line.
//
// The default command runs the HTTP API. The other commands administer the
// same SQLite database directly, for operators on the host:
//
//	zaura serve                           run the API
//	zaura user create|list|enable|disable|delete
//	zaura task list --user <login>
//	zaura conversation list|show|export --user <login>
//	zaura config show|path|init|get|set|keys
//	zaura version | help
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	os.Exit(cli.Run(ctx, cli.DefaultEnv(), os.Args[1:]))
//
// Commands return errors instead of exiting; Run prints them (as a JSON
// envelope with --json) and maps them to exit codes.
//
// Output is styled with lipgloss. Colors are off when stdout is not a
// terminal or NO_COLOR is set, so piped output is plain text.
package cli
