// Command netlogd keeps a bounded log of network connection events and
// streams it to readers over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func app() *cli.App {
	return &cli.App{
		Name:    "netlogd",
		Usage:   "network connection event log",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Commands: []*cli.Command{
			serveCommand(),
			tailCommand(),
			configCommand(),
		},
	}
}

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
