package trace

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
)

// Repository is the interface for persisting fetched trace data.
type Repository interface {
	Save(ctx context.Context, trace *Detail) error
}

// FileRepository persists trace data as JSON files.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a new FileRepository that writes to the given directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace as JSON to {dir}/{id}.json.
func (r *FileRepository) Save(_ context.Context, trace *Detail) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.V("trace_id", trace.ID))
	}

	filePath := filepath.Join(r.dir, objectName(trace.ID))
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write trace file", goerr.V("path", filePath))
	}

	return nil
}

// StorageRepository persists trace data as JSON objects in a Cloud Storage bucket.
type StorageRepository struct {
	bucket string
	prefix string
	client *storage.Client
}

// NewStorageRepository creates a StorageRepository writing {prefix}{id}.json objects
// into bucket. opts are passed to the underlying storage client, e.g. credentials.
func NewStorageRepository(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*StorageRepository, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}

	return &StorageRepository{
		bucket: bucket,
		prefix: prefix,
		client: client,
	}, nil
}

// Save uploads the trace as a JSON object.
func (r *StorageRepository) Save(ctx context.Context, trace *Detail) error {
	data, err := json.Marshal(trace)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace", goerr.V("trace_id", trace.ID))
	}

	name := r.prefix + objectName(trace.ID)
	w := r.client.Bucket(r.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write trace object",
			goerr.V("bucket", r.bucket),
			goerr.V("object", name),
		)
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize trace object",
			goerr.V("bucket", r.bucket),
			goerr.V("object", name),
		)
	}

	return nil
}

// Close releases the underlying storage client.
func (r *StorageRepository) Close() error {
	return r.client.Close()
}

// objectName maps a trace ID to a file name. IDs are opaque and may contain
// path separators, so they are escaped to keep every trace in one flat directory.
func objectName(traceID string) string {
	return url.PathEscape(traceID) + ".json"
}
