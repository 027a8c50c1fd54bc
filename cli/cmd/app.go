package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lfs-agent/types"
)

const usageText = `git-lfs-agent [--tmpdir DIR] [--tool NAME] [--config FILE] [--log-level LEVEL] <remote>

   git-lfs runs the agent as a standalone custom transfer agent. Add to .lfsconfig:

     [lfs]
       standalonetransferagent = lfs-agent
     [lfs "customtransfer.lfs-agent"]
       path = git-lfs-agent
       args = --tool rclone gdrive:lfs-store

   Objects are stored at <remote>/<oid>. Everything after the flags is joined
   with single spaces to form <remote>.`

// NewApp builds the git-lfs-agent application. The caller sets Reader,
// Writer and ErrWriter for anything other than the process stdio.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:            "git-lfs-agent",
		Usage:           "git-lfs custom transfer agent backed by rclone, scp or another copy tool",
		UsageText:       usageText,
		Version:         fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		HideHelpCommand: true,
		Flags:           AgentFlags(),
		Action:          agentAction,
		OnUsageError: func(c *cli.Context, err error, _ bool) error {
			return ReportInitError(c.App.Writer, &InitError{Err: err})
		},
	}
}

// Run hoists agent flags out of args and runs app. Errors found before the
// app runs are reported like any other initialize error.
func Run(app *cli.App, args []string) error {
	return RunContext(context.Background(), app, args)
}

// RunContext is Run with a parent context. Cancelling ctx stops the session
// before its next read and exits with the protocol abort code.
func RunContext(ctx context.Context, app *cli.App, args []string) error {
	hoisted, err := HoistArgs(args)
	if err != nil {
		w := app.Writer
		if w == nil {
			w = os.Stdout
		}
		return ReportInitError(w, &InitError{Err: err})
	}
	return app.RunContext(ctx, hoisted)
}
