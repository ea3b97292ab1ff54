package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wolfie/internal/app"
	"wolfie/internal/printer"

	"github.com/spf13/cobra"
)

func newServeCmd(g *globals) *cobra.Command {
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run maintenance jobs and hot-reload the config until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, g.configPath)
			if err != nil {
				return p.Error("Could not start wolfie", err.Error(), nil)
			}
			if err := a.Start(ctx); err != nil {
				_ = a.Stop(context.Background())
				return p.Error("Could not start wolfie", err.Error(), nil)
			}
			p.Step("serving with %s; Ctrl-C to stop", g.configPath)

			select {
			case <-ctx.Done():
			case <-a.Done():
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			if err := a.Stop(stopCtx); err != nil {
				return p.Error("Shutdown incomplete", err.Error(), nil)
			}
			if err := a.Err(); err != nil {
				return p.Error("Stopped after an error", err.Error(), nil)
			}
			p.Success("stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "how long to wait for running jobs on shutdown")
	return cmd
}

func newMaintCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maint",
		Short: "Inspect or trigger maintenance jobs",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List maintenance jobs and their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				tw := p.Table()
				fmt.Fprintln(tw, "JOB\tSCHEDULE")
				for _, j := range a.Maintenance().Snapshot() {
					fmt.Fprintf(tw, "%s\t%s\n", j.Name, j.Schedule)
				}
				return tw.Flush()
			})
		},
	}

	run := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App, p *printer.Printer) error {
				start := time.Now()
				if err := a.Maintenance().RunNow(ctx, args[0]); err != nil {
					return p.Error("Job failed", err.Error(), []string{"List jobs with `wolfie maint ls`"})
				}
				p.Success("%s done in %s", args[0], time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.AddCommand(ls, run)
	return cmd
}
