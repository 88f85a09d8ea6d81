// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// user_cmd.go - Account administration against the local database.
package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jeranaias/zaura/internal/auth"
	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

const (
	userCreateUsage = "zaura user create --email <email> --username <name> [--name <full name>] [--password-stdin]"
	userLoginUsage  = "zaura user %s <email|username>"
)

func runUser(ctx context.Context, env *Env, args *ArgParser) error {
	sub := args.Subcommand()
	switch sub {
	case "create", "add":
	case "list", "ls", "":
	case "disable", "enable", "delete", "rm":
	default:
		return &UsageError{Message: fmt.Sprintf("unknown user subcommand %q", sub), Usage: "zaura user create|list|disable|enable|delete"}
	}

	cfg, store, err := openStore(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	switch sub {
	case "create", "add":
		return userCreate(ctx, env, args, store)
	case "list", "ls", "":
		return userList(ctx, env, args, store)
	}
	svc := auth.NewService(store, authConfig(cfg))
	if sub == "delete" || sub == "rm" {
		return userDelete(ctx, env, args, svc, store)
	}
	return userSetActive(ctx, env, args, svc, store, sub == "enable")
}

// userCreate creates an account, reading the password without echo.
func userCreate(ctx context.Context, env *Env, args *ArgParser, store *storage.Store) error {
	email, username := args.Flag("email"), args.Flag("username")
	if email == "" {
		return ErrMissingArgument("--email", userCreateUsage)
	}
	if username == "" {
		return ErrMissingArgument("--username", userCreateUsage)
	}

	u, err := model.NewUser(email, username, args.Flag("name"))
	if err != nil {
		return err
	}

	fromStdin := args.BoolFlag("password-stdin")
	password, err := env.readSecret("Password: ", fromStdin)
	if err != nil {
		return err
	}
	if !fromStdin {
		again, err := env.readSecret("Confirm password: ", false)
		if err != nil {
			return err
		}
		if again != password {
			return &UsageError{Message: "passwords do not match"}
		}
	}
	if err := u.SetPassword(password); err != nil {
		return err
	}

	if err := store.CreateUser(ctx, u); err != nil {
		return NewCommandError("user", "create", err)
	}
	log.Printf("USER_CREATED | user=%s source=cli", u.ID)

	if args.BoolFlag("json") {
		return NewJSONResponse("user create", u).Print(env.Stdout)
	}
	fmt.Fprintf(env.Stdout, "%s user %s (%s)\n", SuccessStyle.Render("Created"), u.Username, u.ID)
	return nil
}

// userList prints every account, oldest first.
func userList(ctx context.Context, env *Env, args *ArgParser, store *storage.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return NewCommandError("user", "list", err)
	}
	if args.BoolFlag("json") {
		return NewJSONResponse("user list", users).Print(env.Stdout)
	}
	if len(users) == 0 {
		fmt.Fprintln(env.Stdout, DimStyle.Render("No users. Create one with: "+userCreateUsage))
		return nil
	}

	tbl := newTable("USERNAME", "EMAIL", "NAME", "STATUS", "MFA", "LAST LOGIN")
	tbl.maxWidth[2] = 30
	tbl.styles[3] = RenderStatus
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "disabled"
		}
		mfa := "off"
		if u.MFAEnabled {
			mfa = "on"
		}
		lastLogin := "never"
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Local().Format("2006-01-02 15:04")
		}
		tbl.add(u.Username, u.Email, u.FullName, status, mfa, lastLogin)
	}
	tbl.render(env.Stdout)
	return nil
}

// userSetActive enables or disables an account. A running server notices
// within the auth user cache TTL.
func userSetActive(ctx context.Context, env *Env, args *ArgParser, svc *auth.Service, store *storage.Store, active bool) error {
	verb, event, done := "disable", "USER_DISABLED", "Disabled"
	if active {
		verb, event, done = "enable", "USER_ENABLED", "Enabled"
	}
	login := args.Positional(1)
	if login == "" {
		return ErrMissingArgument("login", fmt.Sprintf(userLoginUsage, verb))
	}
	u, err := store.GetUserByLogin(ctx, login)
	if err != nil {
		return fmt.Errorf("user %q: %w", login, err)
	}
	if err := svc.SetActive(ctx, u.ID, active); err != nil {
		return NewCommandError("user", verb, err)
	}
	log.Printf("%s | user=%s source=cli", event, u.ID)
	fmt.Fprintf(env.Stdout, "%s %s\n", SuccessStyle.Render(done), u.Username)
	return nil
}

// userDelete removes an account with its tasks and conversations.
func userDelete(ctx context.Context, env *Env, args *ArgParser, svc *auth.Service, store *storage.Store) error {
	login := args.Positional(1)
	if login == "" {
		return ErrMissingArgument("login", fmt.Sprintf(userLoginUsage, "delete")+" --confirm")
	}
	u, err := store.GetUserByLogin(ctx, login)
	if err != nil {
		return fmt.Errorf("user %q: %w", login, err)
	}

	ok, err := RequireConfirmation(env, args, fmt.Sprintf("delete user %s and all of their data", u.Username))
	if err != nil {
		return err
	}
	if !ok {
		ShowCancellationMessage(env)
		return nil
	}

	if err := svc.DeleteUser(ctx, u.ID); err != nil {
		return NewCommandError("user", "delete", err)
	}
	fmt.Fprintf(env.Stdout, "%s %s\n", SuccessStyle.Render("Deleted"), u.Username)
	return nil
}
