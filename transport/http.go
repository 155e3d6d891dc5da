package transport

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries     = 2
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second

	// maxRetryAfter is the longest server-provided Retry-After that is honoured.
	maxRetryAfter = 30 * time.Second
)

// HTTP is a Transport backed by net/http.
type HTTP struct {
	baseURL string
	client  *http.Client
	headers http.Header

	username string
	password string

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration

	limiter        *rate.Limiter
	tracerProvider otelTrace.TracerProvider
}

// Option is a function that configures HTTP.
type Option func(*HTTP)

// WithHTTPClient sets the underlying http.Client. Its Transport is wrapped
// with OpenTelemetry instrumentation; the given client itself is not modified.
func WithHTTPClient(client *http.Client) Option {
	return func(t *HTTP) {
		t.client = client
	}
}

// WithBasicAuth sets credentials sent with every request.
func WithBasicAuth(username, password string) Option {
	return func(t *HTTP) {
		t.username = username
		t.password = password
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *HTTP) {
		t.headers.Add(key, value)
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
// Default: 2
func WithMaxRetries(n int) Option {
	return func(t *HTTP) {
		t.maxRetries = n
	}
}

// WithBackoff sets the initial and maximum delay between retries.
// The delay doubles on each attempt and is capped at maxDelay.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(t *HTTP) {
		t.initialBackoff = initial
		t.maxBackoff = maxDelay
	}
}

// WithTimeout sets the default timeout of a call including retries.
// A per-call CallOptions.Timeout takes precedence.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTP) {
		t.timeout = d
	}
}

// WithRateLimit limits outgoing attempts to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTP) {
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTracerProvider sets the TracerProvider used for HTTP client spans.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(t *HTTP) {
		t.tracerProvider = tp
	}
}

// New creates an HTTP transport for the API rooted at baseURL.
func New(baseURL string, options ...Option) (*HTTP, error) {
	if baseURL == "" {
		return nil, goerr.New("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, goerr.Wrap(err, "invalid base URL", goerr.V("base_url", baseURL))
	}

	t := &HTTP{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         http.DefaultClient,
		headers:        http.Header{},
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
	}
	for _, opt := range options {
		opt(t)
	}

	if t.maxRetries < 0 {
		return nil, goerr.New("max retries must not be negative", goerr.V("max_retries", t.maxRetries))
	}

	base := t.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if t.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(t.tracerProvider))
	}
	var rt http.RoundTripper = otelhttp.NewTransport(base, otelOpts...)
	if t.limiter != nil {
		rt = &limitedTransport{next: rt, limiter: t.limiter}
	}
	client := *t.client
	client.Transport = rt
	t.client = &client

	return t, nil
}

// Do sends req, retrying on network failures and on 408, 409, 429 and 5xx
// responses. The last response is returned as is once retries are exhausted.
func (t *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := t.timeout
	if req.Options.Timeout > 0 {
		timeout = req.Options.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	maxRetries := t.maxRetries
	if req.Options.MaxRetries != nil {
		maxRetries = *req.Options.MaxRetries
	}

	target := t.buildURL(req)
	requestID := uuid.NewString()

	var body any
	if req.Body != nil {
		body = req.Body
	}
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", target))
	}
	t.setHeaders(httpReq.Header, req, requestID)
	if t.username != "" || t.password != "" {
		httpReq.SetBasicAuth(t.username, t.password)
	}

	logger := ctxlog.From(ctx).With(
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("url", target),
	)
	client := &retryablehttp.Client{
		HTTPClient:   t.client,
		Logger:       logger,
		RetryWaitMin: t.initialBackoff,
		RetryWaitMax: t.maxBackoff,
		RetryMax:     maxRetries,
		CheckRetry:   checkRetry,
		Backoff:      backoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if httpResp != nil {
			_ = httpResp.Body.Close()
		}
		return nil, goerr.Wrap(err, "failed to send request",
			goerr.V("method", req.Method),
			goerr.V("url", target),
			goerr.V("max_retries", maxRetries),
			goerr.Tag(ErrTagTransport),
		)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response body",
			goerr.V("url", target),
			goerr.Tag(ErrTagTransport),
		)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (t *HTTP) setHeaders(h http.Header, req *Request, requestID string) {
	for key, values := range t.headers {
		for _, v := range values {
			h.Add(key, v)
		}
	}
	for key, values := range req.Options.Headers {
		h.Del(key)
		for _, v := range values {
			h.Add(key, v)
		}
	}
	if req.Body != nil && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	h.Set("Accept", "application/json")
	h.Set("X-Request-Id", requestID)
}

// buildURL joins the base URL and the already escaped request path, then
// appends the merged query. Keys are sorted; repeated values keep their order.
func (t *HTTP) buildURL(req *Request) string {
	target := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")

	query := url.Values{}
	for key, values := range req.Query {
		query[key] = append(query[key], values...)
	}
	for key, values := range req.Options.Query {
		query[key] = append(query[key], values...)
	}
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// checkRetry retries 408, 409, 429 and 5xx responses. Network errors and
// context cancellation follow the retryablehttp default policy.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || ctx.Err() != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return shouldRetry(resp.StatusCode), nil
}

func shouldRetry(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

// backoff waits for the server's Retry-After when it is at most maxRetryAfter.
// Otherwise the delay is minDelay doubled per attempt, capped at maxDelay,
// less up to 25% jitter.
func backoff(minDelay, maxDelay time.Duration, attempt int, resp *http.Response) time.Duration {
	// zero bounds leave only the Retry-After value
	if d := retryablehttp.DefaultBackoff(0, 0, attempt, resp); d > 0 && d <= maxRetryAfter {
		return d
	}

	d := retryablehttp.DefaultBackoff(minDelay, maxDelay, attempt, nil)
	return time.Duration(float64(d) * (1 - 0.25*rand.Float64()))
}

// limitedTransport waits on the rate limiter before every attempt.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (l *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := l.limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, goerr.Wrap(err, "failed to wait for rate limiter")
	}
	return l.next.RoundTrip(req)
}
