// Package main provides the git-lfs-agent entrypoint.
//
// git-lfs starts the agent once per push or pull and talks to it over
// stdin/stdout using the custom transfer protocol.
//
// Usage:
//
//	git-lfs-agent [--tmpdir DIR] [--tool NAME] [--config FILE] [--log-level LEVEL] <remote>
//
// Exit codes:
//   - 0: session finished (terminate or end of input)
//   - 1: configuration error (reported as an initialize error response)
//   - 2: protocol abort (malformed input, unwritable output)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/lfs-agent/cli/cmd"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := cmd.NewApp(commit)
	app.Reader = os.Stdin
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.ExitErrHandler = exitErrHandler

	if err := cmd.Run(app, os.Args); err != nil {
		// Errors raised inside the app already exited via ExitErrHandler.
		// This branch handles errors found before the app ran.
		exitErrHandler(nil, err)
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode prints err's message, if it has a real one, and returns the
// process exit code for it.
func exitCode(err error, stderr io.Writer) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		return code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
