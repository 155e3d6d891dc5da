package main

import (
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:     "tracekit",
		Usage:    "Fetch traces from the trace service API",
		Flags:    globalFlags(),
		Before:   setupLogger,
		Commands: []*cli.Command{
			getCommand(),
			listCommand(),
			exportCommand(),
		},
	}
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
