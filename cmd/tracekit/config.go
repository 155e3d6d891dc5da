package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// profile holds connection settings. It can be loaded from a YAML file and
// every value can be overridden by a flag or environment variable.
type profile struct {
	Host       string        `yaml:"host"`
	PublicKey  string        `yaml:"public_key"`
	SecretKey  string        `yaml:"secret_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"`
}

func loadProfile(path string) (*profile, error) {
	var p profile
	if path == "" {
		return &p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return &p, nil
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Sources: cli.EnvVars("TRACEKIT_CONFIG"),
			Usage:   "YAML file with host, public_key, secret_key, timeout and max_retries",
		},
		&cli.StringFlag{
			Name:    "host",
			Sources: cli.EnvVars("TRACEKIT_HOST"),
			Usage:   "Base URL of the trace service API",
		},
		&cli.StringFlag{
			Name:    "public-key",
			Sources: cli.EnvVars("TRACEKIT_PUBLIC_KEY"),
			Usage:   "Public API key",
		},
		&cli.StringFlag{
			Name:    "secret-key",
			Sources: cli.EnvVars("TRACEKIT_SECRET_KEY"),
			Usage:   "Secret API key",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Sources: cli.EnvVars("TRACEKIT_TIMEOUT"),
			Usage:   "Timeout of each API call including retries",
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Sources: cli.EnvVars("TRACEKIT_MAX_RETRIES"),
			Usage:   "Retries for 408, 409, 429, 5xx and network failures",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			Sources: cli.EnvVars("TRACEKIT_LOG_LEVEL"),
			Usage:   "Log level (debug, info, warn, error)",
		},
	}
}

// setupLogger installs the CLI logger into ctx and as the slog default.
func setupLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cmd.String("log-level")))); err != nil {
		return ctx, goerr.Wrap(err, "invalid log level", goerr.V("level", cmd.String("log-level")))
	}

	w := cmd.Root().ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return ctxlog.With(ctx, logger), nil
}

// newClient builds the API client from the config file overlaid with flags.
func newClient(cmd *cli.Command) (*tracekit.Client, error) {
	p, err := loadProfile(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		p.Host = cmd.String("host")
	}
	if cmd.IsSet("public-key") {
		p.PublicKey = cmd.String("public-key")
	}
	if cmd.IsSet("secret-key") {
		p.SecretKey = cmd.String("secret-key")
	}
	if cmd.IsSet("timeout") {
		p.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("max-retries") {
		n := cmd.Int("max-retries")
		p.MaxRetries = &n
	}

	if p.Host == "" {
		return nil, goerr.New("host is required: set --host, TRACEKIT_HOST or host in the config file")
	}

	var opts []tracekit.Option
	if p.PublicKey != "" || p.SecretKey != "" {
		opts = append(opts, tracekit.WithCredentials(p.PublicKey, p.SecretKey))
	}
	if p.Timeout > 0 {
		opts = append(opts, tracekit.WithTimeout(p.Timeout))
	}
	if p.MaxRetries != nil {
		opts = append(opts, tracekit.WithMaxRetries(*p.MaxRetries))
	}

	return tracekit.New(p.Host, opts...)
}
