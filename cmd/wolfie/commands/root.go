// Package commands implements the wolfie command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"wolfie/internal/app"
	"wolfie/internal/command"
	"wolfie/internal/printer"

	"github.com/spf13/cobra"
)

type Build struct {
	Version string
	Commit  string
}

// globals holds the persistent flags.
type globals struct {
	configPath string
	as         string
	name       string
}

// NewRoot builds the command tree.
func NewRoot(b Build) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "wolfie",
		Short: "Title queues and weekend battle sign-ups for a game community",
		Long: `wolfie keeps per-category title queues with one-hour slots and the
Battle of Dawn / Wonder Contest weekend grids.

Every command acts on behalf of a participant (--as, default: the OS user).
State lives in the storage backend named by the config file.`,
		Version:       fmt.Sprintf("%s (commit: %s)", b.Version, b.Commit),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", envOr("WOLFIE_CONFIG", "wolfie.yaml"), "config file (yaml or json)")
	pf.StringVar(&g.as, "as", envOr("WOLFIE_AS", currentUser()), "participant id to act as")
	pf.StringVar(&g.name, "name", "", "display name used when the participant is new")

	root.AddCommand(
		newServeCmd(g),
		newQueueCmd(g),
		newBattleCmd(g, dawnKind),
		newBattleCmd(g, wonderKind),
		newPrefsCmd(g),
		newForgetCmd(g),
		newMaintCmd(g),
	)
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return ""
}

func (g *globals) caller() command.Caller {
	name := g.name
	if name == "" {
		name = g.as
	}
	return command.Caller{ID: g.as, DisplayName: name}
}

// withApp opens the app for one command and always stops it, flushing any
// dirty region.
func withApp(cmd *cobra.Command, g *globals, fn func(ctx context.Context, a *app.App, p *printer.Printer) error) error {
	p := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, g.configPath)
	if err != nil {
		return p.Error("Could not start wolfie", err.Error(), []string{
			fmt.Sprintf("Check the config file %q", g.configPath),
		})
	}
	runErr := fn(ctx, a, p)
	if err := a.Stop(ctx); err != nil && runErr == nil {
		return p.Error("Changes may not be saved", err.Error(), []string{"Run the command again once storage is reachable"})
	}
	return runErr
}
