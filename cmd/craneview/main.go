// Package main provides the craneview CLI entrypoint.
//
// Usage:
//
//	craneview <command> [subcommand] [options]
//
// Exit codes for connect:
//   - 0: session ended normally
//   - 1: usage, config or storage failure
//   - 2: the channel failed to open or dropped
//   - 3: a backend exception stopped the session (cancel recovery)
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/cmd"
	"github.com/pithecene-io/craneview/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "craneview",
		Usage:          "Follow and command a robotic crane over its websocket backend",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ConnectCommand(),
			cmd.SendCommand(),
			cmd.ReplayCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

var osExit = os.Exit

// exitErrHandler prints the error and exits with the code carried by
// cli.Exit, or 1 for anything else.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	osExit(reportExit(os.Stderr, err))
}

// reportExit writes err to w and returns the exit code to use.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		// cli.Exit("", N) carries no message worth printing.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
