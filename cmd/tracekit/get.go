package main

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a trace with its observations and scores",
		ArgsUsage: "<trace-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			traceID := cmd.Args().First()
			if traceID == "" {
				return goerr.New("trace ID is required")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			detail, err := client.Trace().Get(ctx, traceID)
			if err != nil {
				return goerr.Wrap(err, "failed to get trace", goerr.V("trace_id", traceID))
			}

			enc := json.NewEncoder(outWriter(cmd))
			enc.SetIndent("", "  ")
			if err := enc.Encode(detail); err != nil {
				return goerr.Wrap(err, "failed to write trace")
			}
			return nil
		},
	}
}
