package tracekit

import (
	"context"
	"net/http"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit/internal/schema"
	"github.com/m-mizutani/tracekit/trace"
	"github.com/m-mizutani/tracekit/transport"
	"go.opentelemetry.io/otel/attribute"
)

const tracesPath = "api/public/traces"

// TraceClient retrieves traces. Obtain one with Client.Trace.
//
// Every method returns one of the following errors on failure:
//   - *APIError for a non-2xx response (errors.Is with ErrNotFound, ErrUnauthorized, ...)
//   - *DecodeError for a 2xx response that does not match the result type
//   - the transport error, tagged with ErrTagTransport
//   - ErrInvalidParameter when the arguments are rejected before any request is sent
type TraceClient struct {
	client *Client
}

// Get fetches a single trace with its observations and scores.
func (x *TraceClient) Get(ctx context.Context, traceID string, opts ...RequestOption) (*trace.Detail, error) {
	if traceID == "" {
		return nil, goerr.Wrap(ErrInvalidParameter, "trace ID is required")
	}
	// PathEscape keeps dots, and a dot segment would be resolved to another resource.
	if traceID == "." || traceID == ".." {
		return nil, goerr.Wrap(ErrInvalidParameter, "trace ID must not be a dot segment", goerr.V("trace_id", traceID))
	}

	return invoke[trace.Detail](ctx, x.client, operation{
		name: "tracekit.trace.get",
		request: &transport.Request{
			Method:  http.MethodGet,
			Path:    tracesPath + "/" + url.PathEscape(traceID),
			Options: newCallOptions(opts),
		},
		schema: schema.Detail,
		attrs:  []attribute.KeyValue{attribute.String("tracekit.trace_id", traceID)},
	})
}

// List fetches one page of traces matching filters. A zero ListFilters lists
// all traces with the server's default pagination.
func (x *TraceClient) List(ctx context.Context, filters ListFilters, opts ...RequestOption) (*trace.Page, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	return invoke[trace.Page](ctx, x.client, operation{
		name: "tracekit.trace.list",
		request: &transport.Request{
			Method:  http.MethodGet,
			Path:    tracesPath,
			Query:   filters.Query(),
			Options: newCallOptions(opts),
		},
		schema: schema.Page,
	})
}

// GetAsync is Get without blocking the caller. Cancelling ctx cancels the call.
func (x *TraceClient) GetAsync(ctx context.Context, traceID string, opts ...RequestOption) *Future[*trace.Detail] {
	return async(ctx, func(ctx context.Context) (*trace.Detail, error) {
		return x.Get(ctx, traceID, opts...)
	})
}

// ListAsync is List without blocking the caller. Cancelling ctx cancels the call.
func (x *TraceClient) ListAsync(ctx context.Context, filters ListFilters, opts ...RequestOption) *Future[*trace.Page] {
	return async(ctx, func(ctx context.Context) (*trace.Page, error) {
		return x.List(ctx, filters, opts...)
	})
}
