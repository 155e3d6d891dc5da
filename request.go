package tracekit

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit/internal/schema"
	"github.com/m-mizutani/tracekit/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

var (
	// requestScope is the logging scope for outgoing requests
	requestScope = ctxlog.NewScope("tracekit_request", ctxlog.EnabledBy("TRACEKIT_LOGGING_REQUEST"))

	// responseScope is the logging scope for received responses
	responseScope = ctxlog.NewScope("tracekit_response", ctxlog.EnabledBy("TRACEKIT_LOGGING_RESPONSE"))
)

// RequestOption overrides transport settings for a single call.
// The values are handed to the transport as is.
type RequestOption func(*transport.CallOptions)

// WithRequestTimeout bounds the call, retries included.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *transport.CallOptions) {
		o.Timeout = d
	}
}

// WithRequestMaxRetries overrides the transport's retry count.
func WithRequestMaxRetries(n int) RequestOption {
	return func(o *transport.CallOptions) {
		o.MaxRetries = &n
	}
}

// WithRequestHeader sets an additional header.
func WithRequestHeader(key, value string) RequestOption {
	return func(o *transport.CallOptions) {
		if o.Headers == nil {
			o.Headers = http.Header{}
		}
		o.Headers.Add(key, value)
	}
}

// WithRequestQuery adds an additional query parameter.
func WithRequestQuery(key, value string) RequestOption {
	return func(o *transport.CallOptions) {
		if o.Query == nil {
			o.Query = url.Values{}
		}
		o.Query.Add(key, value)
	}
}

func newCallOptions(opts []RequestOption) transport.CallOptions {
	var o transport.CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// operation describes one API call: the request to send and the schema the
// successful response must match.
type operation struct {
	name    string
	request *transport.Request
	schema  schema.Name
	attrs   []attribute.KeyValue
}

// invoke runs op and returns the decoded result. It is the single code path
// behind both the blocking and the *Async methods.
func invoke[T any](ctx context.Context, c *Client, op operation) (*T, error) {
	ctx, span := c.tracer.Start(ctx, op.name,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(op.attrs...),
	)
	defer span.End()

	result, err := roundTrip[T](ctx, c, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func roundTrip[T any](ctx context.Context, c *Client, op operation) (*T, error) {
	req := op.request
	ctxlog.From(ctx, requestScope).Info("sending request",
		slog.String("operation", op.name),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("query", req.Query.Encode()),
	)

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call API",
			goerr.V("operation", op.name),
			goerr.V("path", req.Path),
			goerr.Tag(ErrTagTransport),
		)
	}

	span := otelTrace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	ctxlog.From(ctx, responseScope).Info("received response",
		slog.String("operation", op.name),
		slog.Int("status", resp.StatusCode),
		slog.String("body", resp.Text()),
	)

	if !resp.IsSuccess() {
		apiErr := classify(resp)
		span.SetAttributes(attribute.String("tracekit.error_kind", apiErr.Kind.String()))
		return nil, goerr.Wrap(apiErr, "API returned error",
			goerr.V("operation", op.name),
			goerr.V("path", req.Path),
			goerr.V("status", resp.StatusCode),
			goerr.Tag(ErrTagAPI),
		)
	}

	result, err := decode[T](resp, op.schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode response",
			goerr.V("operation", op.name),
			goerr.V("path", req.Path),
			goerr.V("status", resp.StatusCode),
			goerr.Tag(ErrTagDecode),
		)
	}
	return result, nil
}
