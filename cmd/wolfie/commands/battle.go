package commands

import (
	"context"
	"strings"

	"wolfie/internal/app"
	"wolfie/internal/battle"
	"wolfie/internal/printer"

	"github.com/spf13/cobra"
)

type battleKind int

const (
	dawnKind battleKind = iota
	wonderKind
)

func newBattleCmd(g *globals, kind battleKind) *cobra.Command {
	title := battle.DawnTitle
	cmd := &cobra.Command{
		Use:   "dawn",
		Short: "Battle of Dawn weekend sign-ups",
	}
	if kind == wonderKind {
		title = battle.WonderTitle
		cmd.Use, cmd.Short = "wonder", "Wonder Contest weekend sign-ups"
	}

	add := &cobra.Command{
		Use:   "add <day> <slot> <class> [options]",
		Short: "Sign up for a cell; options containing p mark it primary",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().DawnAdd(ctx, g.caller(), args[0], args[1], args[2], arg(args, 3))
				if failed(err) {
					return report(p, err)
				}
				renderRegistration(p, title, res)
				unsaved(p, err)
				return nil
			})
		},
	}
	if kind == wonderKind {
		var primary, secondary bool
		add = &cobra.Command{
			Use:   "add <day> <slot>",
			Short: "Sign up for a cell; -p marks it primary, -s secondary",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				flag := ""
				switch {
				case primary && secondary:
					return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Error("Invalid argument", "choose either -p or -s", nil)
				case primary:
					flag = "-p"
				case secondary:
					flag = "-s"
				}
				return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
					res, err := a.Dispatcher().WonderAdd(ctx, g.caller(), args[0], args[1], flag)
					if failed(err) {
						return report(p, err)
					}
					renderRegistration(p, title, res)
					unsaved(p, err)
					return nil
				})
			},
		}
		add.Flags().BoolVarP(&primary, "primary", "p", false, "mark this cell primary")
		add.Flags().BoolVarP(&secondary, "secondary", "s", false, "mark this cell secondary (default)")
	}

	rm := &cobra.Command{
		Use:     "rm <day> <slot>",
		Aliases: []string{"remove"},
		Short:   "Withdraw from a cell",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				remove := a.Dispatcher().DawnRemove
				if kind == wonderKind {
					remove = a.Dispatcher().WonderRemove
				}
				res, err := remove(ctx, g.caller(), args[0], args[1])
				if failed(err) {
					return report(p, err)
				}
				if !res.Removed {
					p.Warning("you were not signed up for %s %s/%s", title, res.Day, res.Slot)
					return nil
				}
				p.Success("Withdrawn from %s %s/%s", title, res.Day, res.Slot)
				unsaved(p, err)
				return nil
			})
		},
	}

	var all bool
	ls := &cobra.Command{
		Use:     "ls [day] [slot]",
		Aliases: []string{"list"},
		Short:   "Show the grid with everyone's local time",
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := battle.Filter{All: all, Day: strings.ToLower(arg(args, 0)), Slot: strings.ToLower(arg(args, 1))}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				list := a.Dispatcher().DawnList
				if kind == wonderKind {
					list = a.Dispatcher().WonderList
				}
				cells, err := list(ctx, g.caller(), f)
				if err != nil {
					return report(p, err)
				}
				renderCells(p, title, cells)
				return nil
			})
		},
	}
	ls.Flags().BoolVar(&all, "all", false, "include empty cells")

	cmd.AddCommand(add, rm, ls)
	return cmd
}
