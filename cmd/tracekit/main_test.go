package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tracekit"
	main "github.com/m-mizutani/tracekit/cmd/tracekit"
	"github.com/m-mizutani/tracekit/trace"
)

func summary(id string) trace.Summary {
	return trace.Summary{
		Trace: trace.Trace{
			ID:        id,
			Timestamp: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
			Tags:      []string{"prod"},
		},
		HTMLPath:     "/traces/" + id,
		Latency:      0.5,
		Observations: []string{},
		Scores:       []string{},
	}
}

func detail(id string) trace.Detail {
	s := summary(id)
	return trace.Detail{
		Trace:        s.Trace,
		HTMLPath:     s.HTMLPath,
		Latency:      s.Latency,
		Observations: []trace.Observation{},
		Scores:       []trace.Score{},
	}
}

// newFakeAPI serves two pages of two traces each.
func newFakeAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	pages := map[int][]string{
		1: {"t1", "t2"},
		2: {"t3", "t4"},
	}

	var mu sync.Mutex
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/api/public/traces" {
			mu.Lock()
			queries = append(queries, r.URL.RawQuery)
			mu.Unlock()

			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page == 0 {
				page = 1
			}
			resp := trace.Page{
				Data: []trace.Summary{},
				Meta: trace.Meta{Page: page, Limit: 2, TotalItems: 4, TotalPages: 2},
			}
			for _, id := range pages[page] {
				resp.Data = append(resp.Data, summary(id))
			}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/public/traces/")
		if id == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"trace not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(detail(id))
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := main.NewApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	err := app.Run(context.Background(), append([]string{"tracekit"}, args...))
	return out.String(), err
}

func TestGetCommand(t *testing.T) {
	srv, _ := newFakeAPI(t)

	t.Run("prints trace as json", func(t *testing.T) {
		out, err := run(t, "--host", srv.URL, "--max-retries", "0", "get", "t1")
		gt.NoError(t, err).Required()

		var got trace.Detail
		gt.NoError(t, json.Unmarshal([]byte(out), &got))
		gt.Equal(t, got.ID, "t1")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := run(t, "--host", srv.URL, "--max-retries", "0", "get", "missing")
		gt.Error(t, err)
	})

	t.Run("missing trace id", func(t *testing.T) {
		_, err := run(t, "--host", srv.URL, "get")
		gt.Error(t, err)
	})

	t.Run("missing host", func(t *testing.T) {
		t.Setenv("TRACEKIT_HOST", "")
		_, err := run(t, "get", "t1")
		gt.Error(t, err)
	})
}

func TestListCommand(t *testing.T) {
	srv, queries := newFakeAPI(t)

	t.Run("table output", func(t *testing.T) {
		out, err := run(t, "--host", srv.URL, "list", "--page", "2", "--tag", "a", "--tag", "b")
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("t3")
		gt.S(t, out).Contains("t4")
		gt.S(t, out).Contains("page 2/2")

		last := (*queries)[len(*queries)-1]
		gt.Equal(t, last, "page=2&tags=a&tags=b")
	})

	t.Run("json output with filters", func(t *testing.T) {
		out, err := run(t, "--host", srv.URL, "list",
			"--format", "json",
			"--user-id", "u1",
			"--from", "2024-01-15T09:30:00+00:00",
			"--order-by", "timestamp.desc",
		)
		gt.NoError(t, err).Required()

		var page trace.Page
		gt.NoError(t, json.Unmarshal([]byte(out), &page))
		gt.A(t, page.Data).Length(2)

		last := (*queries)[len(*queries)-1]
		gt.S(t, last).Contains("userId=u1")
		gt.S(t, last).Contains("orderBy=timestamp.desc")
		gt.S(t, last).Contains("fromTimestamp=2024-01-15T09%3A30%3A00%2B00%3A00")
	})

	t.Run("invalid order by", func(t *testing.T) {
		_, err := run(t, "--host", srv.URL, "list", "--order-by", "score.asc")
		gt.Error(t, err)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		_, err := run(t, "--host", srv.URL, "list", "--from", "yesterday")
		gt.Error(t, err)
	})
}

func TestExportCommand(t *testing.T) {
	srv, _ := newFakeAPI(t)

	t.Run("exports every page", func(t *testing.T) {
		dir := t.TempDir()
		out, err := run(t, "--host", srv.URL, "export", "--output", dir)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("exported 4 traces")

		for _, id := range []string{"t1", "t2", "t3", "t4"} {
			data, err := os.ReadFile(filepath.Join(dir, id+".json"))
			gt.NoError(t, err).Required()

			var got trace.Detail
			gt.NoError(t, json.Unmarshal(data, &got))
			gt.Equal(t, got.ID, id)
		}
	})

	t.Run("max pages", func(t *testing.T) {
		dir := t.TempDir()
		out, err := run(t, "--host", srv.URL, "export", "--output", dir, "--max-pages", "1")
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("exported 2 traces")

		entries, err := os.ReadDir(dir)
		gt.NoError(t, err)
		gt.A(t, entries).Length(2)
	})
}

func TestExportCancelsPendingFetches(t *testing.T) {
	arrived := make(chan struct{})
	canceled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/public/traces":
			resp := trace.Page{
				Data: []trace.Summary{summary("missing"), summary("slow")},
				Meta: trace.Meta{Page: 1, Limit: 2, TotalItems: 2, TotalPages: 1},
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/public/traces/missing":
			select {
			case <-arrived:
			case <-time.After(2 * time.Second):
			}
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"trace not found"}`))
		case "/api/public/traces/slow":
			close(arrived)
			select {
			case <-r.Context().Done():
				close(canceled)
			case <-time.After(5 * time.Second):
			}
		}
	}))
	t.Cleanup(srv.Close)

	client := gt.R1(tracekit.New(srv.URL, tracekit.WithMaxRetries(0))).NoError(t)
	repo := trace.NewFileRepository(t.TempDir())

	n, err := main.ExportTraces(context.Background(), client.Trace(), repo, tracekit.ListFilters{}, 0)
	gt.True(t, errors.Is(err, tracekit.ErrNotFound))
	gt.Equal(t, n, 0)

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("pending fetch was not canceled")
	}
}

func TestConfigFile(t *testing.T) {
	srv, _ := newFakeAPI(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("host: "+srv.URL+"\npublic_key: pk\nsecret_key: sk\ntimeout: 5s\nmax_retries: 0\n"), 0600))

	cfg := gt.R1(main.LoadConfig(path)).NoError(t)
	gt.Equal(t, cfg.Host, srv.URL)
	gt.Equal(t, cfg.Timeout, 5*time.Second)
	gt.Equal(t, *cfg.MaxRetries, 0)

	out, err := run(t, "--config", path, "get", "t2")
	gt.NoError(t, err).Required()
	gt.S(t, out).Contains(`"id": "t2"`)
}

func TestParseGSURI(t *testing.T) {
	t.Run("bucket only", func(t *testing.T) {
		bucket, prefix, err := main.ParseGSURI("gs://my-bucket")
		gt.NoError(t, err)
		gt.Equal(t, "my-bucket", bucket)
		gt.Equal(t, "", prefix)
	})

	t.Run("bucket with trailing slash", func(t *testing.T) {
		bucket, prefix, err := main.ParseGSURI("gs://my-bucket/")
		gt.NoError(t, err)
		gt.Equal(t, "my-bucket", bucket)
		gt.Equal(t, "", prefix)
	})

	t.Run("bucket and prefix without trailing slash", func(t *testing.T) {
		bucket, prefix, err := main.ParseGSURI("gs://my-bucket/traces")
		gt.NoError(t, err)
		gt.Equal(t, "my-bucket", bucket)
		gt.Equal(t, "traces/", prefix)
	})

	t.Run("missing gs:// prefix", func(t *testing.T) {
		_, _, err := main.ParseGSURI("s3://my-bucket")
		gt.Error(t, err)
	})

	t.Run("empty bucket", func(t *testing.T) {
		_, _, err := main.ParseGSURI("gs://")
		gt.Error(t, err)
	})
}
