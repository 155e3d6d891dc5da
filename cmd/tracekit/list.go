package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit"
	"github.com/m-mizutani/tracekit/trace"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"
)

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "Page number, starting at 1"},
		&cli.IntFlag{Name: "limit", Usage: "Items per page"},
		&cli.StringFlag{Name: "user-id", Usage: "Only traces of this user"},
		&cli.StringFlag{Name: "name", Usage: "Only traces with this name"},
		&cli.StringFlag{Name: "session-id", Usage: "Only traces of this session"},
		&cli.StringFlag{Name: "from", Usage: "Only traces at or after this RFC 3339 time"},
		&cli.StringFlag{Name: "to", Usage: "Only traces before this RFC 3339 time"},
		&cli.StringFlag{Name: "order-by", Usage: "Sort order as field.direction, e.g. timestamp.desc"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Only traces having all given tags (repeatable)"},
		&cli.StringFlag{Name: "version", Usage: "Only traces with this version"},
		&cli.StringFlag{Name: "release", Usage: "Only traces with this release"},
	}
}

func filtersFromFlags(cmd *cli.Command) (tracekit.ListFilters, error) {
	filters := tracekit.ListFilters{
		Page:      cmd.Int("page"),
		Limit:     cmd.Int("limit"),
		UserID:    cmd.String("user-id"),
		Name:      cmd.String("name"),
		SessionID: cmd.String("session-id"),
		Tags:      cmd.StringSlice("tag"),
		Version:   cmd.String("version"),
		Release:   cmd.String("release"),
	}

	for _, f := range []struct {
		flag string
		dst  *time.Time
	}{
		{"from", &filters.FromTimestamp},
		{"to", &filters.ToTimestamp},
	} {
		v := cmd.String(f.flag)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return filters, goerr.Wrap(err, "invalid timestamp", goerr.V("flag", f.flag), goerr.V("value", v))
		}
		*f.dst = ts
	}

	if v := cmd.String("order-by"); v != "" {
		orderBy, err := tracekit.ParseOrderBy(v)
		if err != nil {
			return filters, err
		}
		filters.OrderBy = orderBy
	}

	return filters, filters.Validate()
}

func listCommand() *cli.Command {
	flags := append(filterFlags(), &cli.StringFlag{
		Name:  "format",
		Value: "table",
		Usage: "Output format (table, json)",
	})

	return &cli.Command{
		Name:  "list",
		Usage: "List traces matching filters",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format := cmd.String("format")
			if format != "table" && format != "json" {
				return goerr.New("unsupported format", goerr.V("format", format))
			}

			filters, err := filtersFromFlags(cmd)
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			page, err := client.Trace().List(ctx, filters)
			if err != nil {
				return goerr.Wrap(err, "failed to list traces")
			}

			if format == "json" {
				enc := json.NewEncoder(outWriter(cmd))
				enc.SetIndent("", "  ")
				if err := enc.Encode(page); err != nil {
					return goerr.Wrap(err, "failed to write traces")
				}
				return nil
			}
			return renderTable(outWriter(cmd), page)
		},
	}
}

func renderTable(w io.Writer, page *trace.Page) error {
	data := pterm.TableData{
		{"ID", "TIMESTAMP", "NAME", "USER", "SESSION", "TAGS", "LATENCY", "COST"},
	}
	for _, s := range page.Data {
		data = append(data, []string{
			s.ID,
			s.Timestamp.UTC().Format(time.RFC3339),
			deref(s.Name),
			deref(s.UserID),
			deref(s.SessionID),
			strings.Join(s.Tags, ","),
			strconv.FormatFloat(s.Latency, 'f', 3, 64) + "s",
			strconv.FormatFloat(s.TotalCost, 'f', 6, 64),
		})
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return goerr.Wrap(err, "failed to render table")
	}

	if _, err := fmt.Fprintln(w, out); err != nil {
		return goerr.Wrap(err, "failed to write table")
	}
	_, err = fmt.Fprintf(w, "page %d/%d, %d traces in total\n", page.Meta.Page, page.Meta.TotalPages, page.Meta.TotalItems)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
