package tracekit

import (
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tracekit/transport"
	otelAPI "go.opentelemetry.io/otel"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	// Version is sent in the SDK headers and User-Agent.
	Version = "0.1.0"

	tracerName = "github.com/m-mizutani/tracekit"
)

// Client is a client for the public REST API of the trace service.
// It is safe for concurrent use.
type Client struct {
	transport transport.Transport

	// transportOptions are applied when the client builds its own HTTP transport.
	transportOptions []transport.Option

	sdkName    string
	sdkVersion string

	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithTransport replaces the built-in HTTP transport. Credentials and other
// transport options are then the responsibility of the given transport.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithCredentials sets the public and secret API keys, sent as basic auth.
func WithCredentials(publicKey, secretKey string) Option {
	return func(c *Client) {
		c.transportOptions = append(c.transportOptions,
			transport.WithBasicAuth(publicKey, secretKey),
			transport.WithHeader("X-Public-Key", publicKey),
		)
	}
}

// WithHTTPClient sets the http.Client used by the built-in transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transportOptions = append(c.transportOptions, transport.WithHTTPClient(client))
	}
}

// WithMaxRetries sets how many times the transport retries a retryable failure.
// Default: 2
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.transportOptions = append(c.transportOptions, transport.WithMaxRetries(n))
	}
}

// WithTimeout sets the default timeout of a call including retries.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transportOptions = append(c.transportOptions, transport.WithTimeout(d))
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.transportOptions = append(c.transportOptions, transport.WithRateLimit(rps, burst))
	}
}

// WithSDKHeaders overrides the SDK name and version reported to the server.
func WithSDKHeaders(name, version string) Option {
	return func(c *Client) {
		c.sdkName = name
		c.sdkVersion = version
	}
}

// WithTracerProvider sets the OpenTelemetry TracerProvider for operation and
// HTTP spans. If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// New creates a client for the API at baseURL, e.g. "https://cloud.example.com".
func New(baseURL string, options ...Option) (*Client, error) {
	c := &Client{
		sdkName:    "tracekit",
		sdkVersion: Version,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.tracerProvider == nil {
		c.tracerProvider = otelAPI.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	if c.transport == nil {
		if baseURL == "" {
			return nil, goerr.Wrap(ErrInvalidParameter, "base URL is required")
		}

		opts := append([]transport.Option{
			transport.WithHeader("X-SDK-Name", c.sdkName),
			transport.WithHeader("X-SDK-Version", c.sdkVersion),
			transport.WithHeader("User-Agent", c.sdkName+"/"+c.sdkVersion),
			transport.WithTracerProvider(c.tracerProvider),
		}, c.transportOptions...)

		t, err := transport.New(baseURL, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create transport", goerr.V("base_url", baseURL))
		}
		c.transport = t
	}

	return c, nil
}

// Trace returns the client for the trace resource.
func (c *Client) Trace() *TraceClient {
	return &TraceClient{client: c}
}
