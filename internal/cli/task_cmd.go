// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// task_cmd.go - Read-only task listing for a user.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/zaura/internal/model"
	"github.com/jeranaias/zaura/internal/storage"
)

const taskListUsage = "zaura task list --user <login> [--status S] [--priority P] [--tag T] [--search Q] [--overdue] [--limit N]"

func runTask(ctx context.Context, env *Env, args *ArgParser) error {
	switch sub := args.Subcommand(); sub {
	case "list", "ls", "":
	default:
		return &UsageError{Message: fmt.Sprintf("unknown task subcommand %q", sub), Usage: taskListUsage}
	}

	filter, err := taskFilterFromArgs(args)
	if err != nil {
		return err
	}

	_, store, err := openStore(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := requireUser(ctx, store, args, taskListUsage)
	if err != nil {
		return err
	}
	tasks, err := store.ListTasks(ctx, u.ID, filter)
	if err != nil {
		return NewCommandError("task", "list", err)
	}

	if args.BoolFlag("json") {
		return NewJSONResponse("task list", tasks).Print(env.Stdout)
	}
	renderTasks(env, u, tasks, time.Now())
	return nil
}

// taskFilterFromArgs builds a storage filter from flags, collecting every bad value.
func taskFilterFromArgs(args *ArgParser) (storage.TaskFilter, error) {
	var filter storage.TaskFilter
	var errs model.ValidationErrors
	collect := func(err error) {
		var verr model.ValidationError
		if errors.As(err, &verr) {
			errs = append(errs, verr)
		}
	}

	if s := args.Flag("status"); s != "" {
		status, err := model.ParseStatus(s)
		collect(err)
		filter.Status = status
	}
	if p := args.Flag("priority"); p != "" {
		priority, err := model.ParsePriority(p)
		collect(err)
		filter.Priority = priority
	}
	if args.HasFlag("limit") {
		limit, err := ParseIntWithValidation(args.Flag("limit"), "limit")
		if err != nil {
			errs = append(errs, model.ValidationError{Field: "limit", Message: err.Error()})
		}
		filter.Limit = limit
	}
	filter.Tag = args.Flag("tag")
	filter.Query = args.Flag("search")
	filter.Overdue = args.BoolFlag("overdue")

	if len(errs) > 0 {
		return storage.TaskFilter{}, errs
	}
	return filter, nil
}

func renderTasks(env *Env, u *model.User, tasks []*model.Task, now time.Time) {
	fmt.Fprintln(env.Stdout, TitleStyle.Render("Tasks for "+u.DisplayName()))
	if len(tasks) == 0 {
		fmt.Fprintln(env.Stdout, DimStyle.Render("No matching tasks."))
		return
	}

	tbl := newTable("ID", "TITLE", "STATUS", "PRIORITY", "DUE", "TAGS")
	tbl.maxWidth[1] = 40
	tbl.styles[2] = RenderStatus
	tbl.styles[3] = RenderPriority

	overdue := 0
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Local().Format("2006-01-02")
			if t.IsOverdue(now) {
				due += " (overdue)"
				overdue++
			}
		}
		tbl.add(t.ID[:min(8, len(t.ID))], t.Title, t.Status.String(), t.Priority.String(), due, strings.Join(t.Tags, ","))
	}
	tbl.render(env.Stdout)

	summary := fmt.Sprintf("%d task(s)", len(tasks))
	if overdue > 0 {
		summary += fmt.Sprintf(", %d overdue", overdue)
	}
	fmt.Fprintln(env.Stdout, DimStyle.Render(summary))
}
