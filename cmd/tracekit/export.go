package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit"
	"github.com/m-mizutani/tracekit/trace"
	"github.com/urfave/cli/v3"
)

// traceFetcher is the part of tracekit.TraceClient used by export.
type traceFetcher interface {
	List(ctx context.Context, filters tracekit.ListFilters, opts ...tracekit.RequestOption) (*trace.Page, error)
	GetAsync(ctx context.Context, traceID string, opts ...tracekit.RequestOption) *tracekit.Future[*trace.Detail]
}

func exportCommand() *cli.Command {
	flags := append(filterFlags(),
		&cli.StringFlag{
			Name:     "output",
			Aliases:  []string{"o"},
			Required: true,
			Usage:    "Destination: a local directory or gs://bucket/prefix",
		},
		&cli.IntFlag{
			Name:  "max-pages",
			Usage: "Stop after this many pages (0 exports every page)",
		},
	)

	return &cli.Command{
		Name:  "export",
		Usage: "Save full traces matching filters as JSON files",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			filters, err := filtersFromFlags(cmd)
			if err != nil {
				return err
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			repo, closeRepo, err := newRepository(ctx, cmd.String("output"))
			if err != nil {
				return err
			}
			defer closeRepo()

			n, err := exportTraces(ctx, client.Trace(), repo, filters, cmd.Int("max-pages"))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(outWriter(cmd), "exported %d traces to %s\n", n, cmd.String("output"))
			return err
		},
	}
}

func newRepository(ctx context.Context, output string) (trace.Repository, func(), error) {
	if !strings.HasPrefix(output, "gs://") {
		return trace.NewFileRepository(output), func() {}, nil
	}

	bucket, prefix, err := parseGSURI(output)
	if err != nil {
		return nil, nil, err
	}
	repo, err := trace.NewStorageRepository(ctx, bucket, prefix)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create Cloud Storage repository")
	}
	return repo, func() { _ = repo.Close() }, nil
}

// parseGSURI splits gs://bucket/prefix into bucket and a prefix that is
// either empty or ends with "/".
func parseGSURI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", goerr.New("URI must start with gs://", goerr.V("uri", uri))
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", goerr.New("bucket name is empty", goerr.V("uri", uri))
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// exportTraces walks the listing page by page starting at filters.Page,
// fetches every trace of a page concurrently and saves them in listing order.
func exportTraces(ctx context.Context, src traceFetcher, repo trace.Repository, filters tracekit.ListFilters, maxPages int) (int, error) {
	logger := ctxlog.From(ctx)
	if filters.Page == 0 {
		filters.Page = 1
	}

	var exported int
	for fetched := 0; maxPages == 0 || fetched < maxPages; fetched++ {
		page, err := src.List(ctx, filters)
		if err != nil {
			return exported, goerr.Wrap(err, "failed to list traces", goerr.V("page", filters.Page))
		}
		if len(page.Data) == 0 {
			break
		}

		n, err := exportPage(ctx, src, repo, page.Data)
		exported += n
		if err != nil {
			return exported, err
		}

		logger.Info("exported page",
			slog.Int("page", filters.Page),
			slog.Int("total_pages", page.Meta.TotalPages),
			slog.Int("exported", exported),
		)

		if filters.Page >= page.Meta.TotalPages {
			break
		}
		filters.Page++
	}

	return exported, nil
}

// exportPage fetches the traces of one page concurrently and saves them in
// order. Fetches still in flight are canceled when it returns.
func exportPage(ctx context.Context, src traceFetcher, repo trace.Repository, summaries []trace.Summary) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	futures := make([]*tracekit.Future[*trace.Detail], len(summaries))
	for i, s := range summaries {
		futures[i] = src.GetAsync(ctx, s.ID)
	}

	var saved int
	for i, f := range futures {
		detail, err := f.Wait(ctx)
		if err != nil {
			return saved, goerr.Wrap(err, "failed to get trace", goerr.V("trace_id", summaries[i].ID))
		}
		if err := repo.Save(ctx, detail); err != nil {
			return saved, goerr.Wrap(err, "failed to save trace", goerr.V("trace_id", detail.ID))
		}
		saved++
	}
	return saved, nil
}
