package commands

import (
	"context"
	"strconv"

	"wolfie/internal/app"
	"wolfie/internal/printer"
	"wolfie/internal/titles"

	"github.com/spf13/cobra"
)

func newQueueCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q", "title"},
		Short:   "Reserve and serve one-hour title slots",
	}

	add := &cobra.Command{
		Use:   "add <category> [date] [time]",
		Short: "Reserve a slot; without date and time, take the next free one",
		Long: `Reserve a one-hour slot in a title queue.

Dates are read as 2025-02-21, 2/21, 2.21 or 21/2 (year optional); times as
22, 22:00 or 10PM. A single token that is not a date is read as a time
today. Times are in your timezone (see ` + "`wolfie prefs tz`" + `).`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, tm := arg(args, 1), arg(args, 2)
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().QueueAdd(ctx, g.caller(), args[0], date, tm)
				if failed(err) {
					return report(p, err)
				}
				p.Success("%s reserved %s at %s (position %d)", res.Alias, res.Category.Title, res.Time.Format(stamp), res.Position+1)
				unsaved(p, err)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <category> [date]",
		Aliases: []string{"remove"},
		Short:   "Drop your earliest slot, or your slot on date",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().QueueRemove(ctx, g.caller(), args[0], arg(args, 1))
				if failed(err) {
					return report(p, err)
				}
				p.Success("Removed %s from %s", res.Entry.Time.Format(stamp), res.Category.Title)
				unsaved(p, err)
				return nil
			})
		},
	}

	next := &cobra.Command{
		Use:   "next <category> [count]",
		Short: "Mark the current slot served and move to the next one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if s := arg(args, 1); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil {
					return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Error("Invalid count", err.Error(), nil)
				}
				count = n
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().QueueAdvance(ctx, g.caller(), args[0], count)
				if failed(err) {
					return report(p, err)
				}
				renderProgress(p, res)
				unsaved(p, err)
				return nil
			})
		},
	}

	back := &cobra.Command{
		Use:   "back <category>",
		Short: "Step the queue back one slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().QueueRollback(ctx, g.caller(), args[0])
				if failed(err) {
					return report(p, err)
				}
				renderProgress(p, res)
				unsaved(p, err)
				return nil
			})
		},
	}

	var active bool
	ls := &cobra.Command{
		Use:     "ls [category...]",
		Aliases: []string{"list"},
		Short:   "Show queues with local times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				views, err := a.Dispatcher().QueueList(ctx, g.caller(), titles.ListOptions{Categories: args, ActiveOnly: active})
				if err != nil {
					return report(p, err)
				}
				renderQueues(p, views)
				return nil
			})
		},
	}
	ls.Flags().BoolVar(&active, "active", false, "only slots that started or start soon")

	cmd.AddCommand(add, rm, next, back, ls)
	return cmd
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
