package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// RetryConfig governs the bounded-retry behavior of Get/FetchJSON, per the
// HTTP fetcher's algorithm: retry only on transport failure, with linear
// backoff, never on an HTTP status.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultRetryConfig retries twice with a 200ms base delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, RetryDelay: 200 * time.Millisecond}
}

// Result is the outcome of a successful fetch: the decoded body and the
// response headers (used by callers that need e.g. ETag/Cache-Control).
type Result[T any] struct {
	Data    T
	Headers http.Header
}

type fetchConfig struct {
	method       string
	headers      http.Header
	body         []byte
	errorHandler func(*http.Response) error
	retry        RetryConfig
}

// Option configures a FetchJSON call.
type Option func(*fetchConfig)

// WithMethod overrides the HTTP method (default GET).
func WithMethod(method string) Option {
	return func(c *fetchConfig) { c.method = method }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(c *fetchConfig) {
		if c.headers == nil {
			c.headers = http.Header{}
		}
		c.headers.Add(key, value)
	}
}

// WithBody sets a raw request body (e.g. for POST).
func WithBody(body []byte) Option {
	return func(c *fetchConfig) { c.body = body }
}

// WithErrorHandler overrides how a non-2xx response is translated into an
// error; the default produces an *HTTPError.
func WithErrorHandler(h func(*http.Response) error) Option {
	return func(c *fetchConfig) { c.errorHandler = h }
}

// WithRetry overrides the retry policy (default DefaultRetryConfig()).
func WithRetry(r RetryConfig) Option {
	return func(c *fetchConfig) { c.retry = r }
}

// Get performs a bounded-retry HTTP request and returns the raw response
// body and headers. This is C1's sole exposed operation: get(uri).
//
// Transport failures (dial/timeout/connection-reset) are retried up to
// MaxRetries times with a retry_delay*attempt linear backoff. An HTTP
// status >= 400 is never retried; it surfaces immediately as HttpStatus.
// Exhausting retries surfaces MaxHttpRetriesReached.
func Get(ctx context.Context, client *http.Client, uri string, opts ...Option) ([]byte, http.Header, error) {
	cfg := fetchConfig{method: http.MethodGet, retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastErr error
	attempts := cfg.retry.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * cfg.retry.RetryDelay
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, headers, err := doOnce(ctx, client, uri, &cfg)
		if err == nil {
			return body, headers, nil
		}
		if isHTTPStatusError(err) {
			return nil, nil, err
		}
		lastErr = err
	}

	return nil, nil, pdperrors.Wrap(pdperrors.KindMaxHttpRetriesReached, "exhausted retries for "+uri, lastErr)
}

func isHTTPStatusError(err error) bool {
	if _, ok := IsHTTPError(err); ok {
		return true
	}
	return pdperrors.Is(err, pdperrors.KindHttpStatus, "")
}

func doOnce(ctx context.Context, client *http.Client, uri string, cfg *fetchConfig) ([]byte, http.Header, error) {
	var bodyReader io.Reader
	if cfg.body != nil {
		bodyReader = bytes.NewReader(cfg.body)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, uri, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range cfg.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		if cfg.errorHandler != nil {
			return nil, nil, cfg.errorHandler(resp)
		}
		return nil, nil, pdperrors.New(pdperrors.KindHttpStatus, (&HTTPError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			URL:        uri,
		}).Error()).WithComponent("httpfetch")
	}

	const maxBody = 4 << 20 // 4MiB
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, err
	}
	return data, resp.Header.Clone(), nil
}

// FetchJSON performs Get and decodes the body as JSON into T.
func FetchJSON[T any](ctx context.Context, client *http.Client, uri string, opts ...Option) (*Result[T], error) {
	body, headers, err := Get(ctx, client, uri, opts...)
	if err != nil {
		return nil, err
	}
	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return &Result[T]{Data: data, Headers: headers}, nil
}
