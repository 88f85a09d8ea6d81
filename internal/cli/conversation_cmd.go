// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversation_cmd.go - Reading and exporting a user's conversations.
package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/zaura/internal/config"
	"github.com/jeranaias/zaura/internal/export"
	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

const (
	conversationListUsage   = "zaura conversation list --user <login> [--search Q] [--limit N]"
	conversationShowUsage   = "zaura conversation show <id> --user <login> [--raw]"
	conversationExportUsage = "zaura conversation export <id> --user <login> [--format markdown|json|html] [--output DIR]"

	defaultConversationListLimit = 20

	// plainMarkdownStyle is glamour's built-in style for non-terminal output
	plainMarkdownStyle = "notty"
)

func runConversation(ctx context.Context, env *Env, args *ArgParser) error {
	sub := args.Subcommand()
	var usage string
	switch sub {
	case "list", "ls", "":
		usage = conversationListUsage
	case "show", "view":
		usage = conversationShowUsage
	case "export":
		usage = conversationExportUsage
	default:
		return &UsageError{Message: fmt.Sprintf("unknown conversation subcommand %q", sub), Usage: "zaura conversation list|show|export"}
	}

	cfg, store, err := openStore(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := requireUser(ctx, store, args, usage)
	if err != nil {
		return err
	}

	switch sub {
	case "show", "view":
		conv, err := loadConversation(ctx, store, u, args, usage)
		if err != nil {
			return err
		}
		return conversationShow(env, args, conv)
	case "export":
		conv, err := loadConversation(ctx, store, u, args, usage)
		if err != nil {
			return err
		}
		return conversationExport(env, args, cfg, conv)
	}
	return conversationList(ctx, env, args, store, u)
}

func loadConversation(ctx context.Context, store *storage.Store, u *model.User, args *ArgParser, usage string) (*model.Conversation, error) {
	id := args.Positional(1)
	if id == "" {
		return nil, ErrMissingArgument("conversation id", usage)
	}
	conv, err := store.GetConversation(ctx, u.ID, id)
	if err != nil {
		return nil, fmt.Errorf("conversation %q: %w", id, err)
	}
	return conv, nil
}

// conversationList prints recent conversations, or search matches with --search.
func conversationList(ctx context.Context, env *Env, args *ArgParser, store *storage.Store, u *model.User) error {
	var (
		metas []model.ConversationMeta
		err   error
	)
	if q := args.Flag("search"); q != "" {
		metas, err = store.SearchConversations(ctx, u.ID, q)
	} else {
		limit := defaultConversationListLimit
		if args.HasFlag("limit") {
			if limit, err = ParseIntWithValidation(args.Flag("limit"), "limit"); err != nil {
				return &UsageError{Message: err.Error(), Usage: conversationListUsage}
			}
		}
		metas, err = store.ListConversations(ctx, u.ID, limit)
	}
	if err != nil {
		return NewCommandError("conversation", "list", err)
	}

	if args.BoolFlag("json") {
		return NewJSONResponse("conversation list", metas).Print(env.Stdout)
	}
	fmt.Fprintln(env.Stdout, TitleStyle.Render("Conversations for "+u.DisplayName()))
	if len(metas) == 0 {
		fmt.Fprintln(env.Stdout, DimStyle.Render("No conversations."))
		return nil
	}

	tbl := newTable("ID", "TITLE", "MESSAGES", "UPDATED")
	tbl.maxWidth[1] = 50
	for _, m := range metas {
		tbl.add(m.ID, m.Title, strconv.Itoa(m.MessageCount), m.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	tbl.render(env.Stdout)
	return nil
}

// conversationShow renders the conversation as Markdown, styled for the terminal
// unless --raw is given.
func conversationShow(env *Env, args *ArgParser, conv *model.Conversation) error {
	if args.BoolFlag("json") {
		return NewJSONResponse("conversation show", conv).Print(env.Stdout)
	}

	opts := export.DefaultOptions()
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false
	md, err := export.NewMarkdownExporter(opts).Export(conv)
	if err != nil {
		return NewCommandError("conversation", "show", err)
	}

	fmt.Fprintln(env.Stdout, DimStyle.Render(fmt.Sprintf("%s  ·  %d message(s)  ·  updated %s",
		conv.ID, len(conv.Messages), conv.UpdatedAt.Local().Format("2006-01-02 15:04"))))

	if args.BoolFlag("raw") {
		_, err := env.Stdout.Write(md)
		return err
	}
	rendered, err := renderMarkdown(string(md), GetTerminalWidth())
	if err != nil {
		return NewCommandError("conversation", "show", err)
	}
	fmt.Fprint(env.Stdout, rendered)
	return nil
}

// renderMarkdown styles md for the terminal. Without colors it uses glamour's
// plain-text style so piped output carries no escape codes.
func renderMarkdown(md string, width int) (string, error) {
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle(plainMarkdownStyle)
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-2))
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

// conversationExport writes the conversation to a file in the chosen format.
func conversationExport(env *Env, args *ArgParser, cfg *config.Config, conv *model.Conversation) error {
	opts := export.DefaultOptions()
	opts.OutputDir = args.FlagOrDefault("output", cfg.Export.Dir)

	exporter, err := export.ForFormat(args.FlagOrDefault("format", cfg.Export.Format), opts)
	if err != nil {
		return &UsageError{Message: err.Error(), Usage: conversationExportUsage}
	}
	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return NewCommandError("conversation", "export", err)
	}

	if args.BoolFlag("json") {
		return NewJSONResponse("conversation export", map[string]string{"path": path}).Print(env.Stdout)
	}
	fmt.Fprintf(env.Stdout, "%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}
