// Package transport performs the raw HTTP exchange with the remote API.
//
// A Transport owns everything that is shared across calls: base URL,
// credentials, connection pool, rate limiter and retry policy. Callers describe
// a single call with a Request and receive the raw Response; interpreting the
// status code and body is left to the caller.
package transport

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/segmentio/encoding/json"
)

// ErrTagTransport is attached to network and timeout failures.
var ErrTagTransport = goerr.NewTag("transport")

// Transport executes a single request. Implementations must be safe for
// concurrent use.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// CallOptions carries per-call overrides. The zero value means "use the
// transport defaults".
type CallOptions struct {
	// Timeout bounds the whole call including retries. Zero means no per-call timeout.
	Timeout time.Duration

	// MaxRetries overrides the transport's retry count when non-nil.
	MaxRetries *int

	// Headers are added to the request after the transport's own headers.
	Headers http.Header

	// Query parameters are merged into the request query.
	Query url.Values
}

// Request describes one HTTP call. It is built per call and never shared.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Options CallOptions
}

// Response is the raw result of a call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is in [200, 300).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return goerr.Wrap(err, "failed to parse response body as JSON", goerr.V("status", r.StatusCode))
	}
	return nil
}
