package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"feedsieve/internal/version"
)

const (
	DefaultAccept   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultMaxBytes = 10 << 20
)

// StatusError is returned by Fetch for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Client provides a configurable HTTP client with common functionality
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	maxBytes   int64
}

type Option func(*Client)

func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithMaxBodyBytes caps how much of a response body Fetch reads.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBytes = n }
}

// New creates a new HTTP client with the specified timeout. Every request
// carries the feedsieve User-Agent and an HTML-first Accept header unless
// overridden.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		headers: map[string]string{
			"User-Agent": version.UserAgent(),
			"Accept":     DefaultAccept,
		},
		maxBytes: defaultMaxBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HTTPClient exposes the underlying client, e.g. for the feed parser.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Get performs a GET request with proper context and headers
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return c.httpClient.Do(req)
}

// Fetch GETs url and returns the body of a 2xx response. Any other status
// is a *StatusError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return body, nil
}

// GetTimeout returns the client timeout
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}
