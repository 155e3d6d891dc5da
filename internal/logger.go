package internal

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// TestLogger returns the logger tests put into their context with
// ctxlog.With. Output is dropped unless TRACEKIT_TEST_LOG=1, which prints
// every record down to debug level as JSON on stdout.
var TestLogger = sync.OnceValue(func() *slog.Logger {
	if os.Getenv("TRACEKIT_TEST_LOG") != "1" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
})
