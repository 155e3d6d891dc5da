package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	app := newApp()

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
