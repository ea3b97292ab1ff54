package commands

import (
	"context"
	"fmt"
	"strings"

	"wolfie/internal/app"
	"wolfie/internal/command"
	"wolfie/internal/printer"

	"github.com/spf13/cobra"
)

func newPrefsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prefs",
		Aliases: []string{"me"},
		Short:   "Display alias and timezone",
	}

	set := &cobra.Command{
		Use:   "set <alias> [timezone]",
		Short: "Set your alias and, optionally, your IANA timezone",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().SetAlias(ctx, g.caller(), args[0], arg(args, 1))
				if failed(err) {
					return report(p, err)
				}
				p.Success("You are %s (%s)", res.Alias, res.Timezone)
				unsaved(p, err)
				return nil
			})
		},
	}

	tz := &cobra.Command{
		Use:     "tz <timezone>",
		Example: "  wolfie prefs tz Europe/Berlin",
		Short:   "Set your IANA timezone",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				res, err := a.Dispatcher().SetTimezone(ctx, g.caller(), args[0])
				if failed(err) {
					return report(p, err)
				}
				p.Success("Times for %s now shown in %s", res.DisplayAlias(g.as), res.Timezone)
				unsaved(p, err)
				return nil
			})
		},
	}

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List known participants",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				entries, err := a.Dispatcher().Preferences(ctx, g.caller())
				if err != nil {
					return report(p, err)
				}
				tw := p.Table()
				fmt.Fprintln(tw, "ID\tNAME\tALIAS\tTIMEZONE")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Alias, e.Timezone)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(set, tz, ls)
	return cmd
}

func newForgetCmd(g *globals) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "forget <" + strings.Join(command.ForgetTargets(), "|") + ">",
		Short: "Reset a region to its empty defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Error(
					"Refusing to forget without --yes",
					fmt.Sprintf("This erases every entry in %q.", args[0]),
					[]string{"Run again with --yes"},
				)
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				region, err := a.Dispatcher().Forget(ctx, g.caller(), args[0])
				if failed(err) {
					return report(p, err)
				}
				p.Success("Region %s reset", region)
				unsaved(p, err)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}
