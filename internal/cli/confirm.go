// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
// The pattern is the same everywhere:
//  1. --confirm (or --yes) proceeds without prompting
//  2. --json or a non-interactive stdin requires --confirm
//  3. otherwise the user is asked y/N on stderr

package cli

import (
	"fmt"
	"strings"
)

// RequireConfirmation reports whether the user agreed to action.
// A false result with a nil error means the user declined.
func RequireConfirmation(env *Env, args *ArgParser, action string) (bool, error) {
	if args.BoolFlag("confirm") || args.BoolFlag("yes") || args.BoolFlag("y") {
		return true, nil
	}
	if args.BoolFlag("json") || !env.Interactive {
		return false, &UsageError{
			Message: "refusing to " + action + " without confirmation",
			Usage:   "re-run with --confirm",
		}
	}

	fmt.Fprintf(env.Stderr, "%s %s? [y/N]: ", WarningStyle.Render("Really"), action)
	answer, err := env.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ShowCancellationMessage tells the user nothing happened.
func ShowCancellationMessage(env *Env) {
	fmt.Fprintln(env.Stderr, DimStyle.Render("Cancelled."))
}
