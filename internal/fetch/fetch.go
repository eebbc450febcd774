// Package fetch issues plain HTTP requests outside of any browser session.
//
// The resource checker uses it to probe image URLs independently of the
// browser cache, and the static engine uses it to download documents,
// stylesheets and images.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Defaults for a Client.
const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a body is read.
	DefaultMaxBodySize = 20 * 1024 * 1024

	// DefaultUserAgent identifies the checker to the origin.
	DefaultUserAgent = "sitecheck/1 (+https://github.com/nao1215/sitecheck)"
)

// Fetcher reports the HTTP status of a URL. Headers are sent on top of the
// fetcher's own and may be nil.
// A non-nil error means no response was received.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (int, error)
}

// Response is a fully read HTTP response.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// URL is the final URL after redirects.
	URL *url.URL

	// Header holds the response headers.
	Header http.Header

	// Body is the response body, truncated to the client's limit.
	Body []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return OK(r.Status)
}

// OK reports whether status is in the 2xx range.
func OK(status int) bool {
	return status >= 200 && status <= 299
}

// Client is an HTTP client with a per-request timeout and fixed headers.
type Client struct {
	// client performs the requests.
	client *http.Client

	// timeout bounds each request, including reading the body.
	timeout time.Duration

	// headers are added to every request.
	headers map[string]string

	// userAgent is the User-Agent header.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// logger records requests at debug level.
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		client:      &http.Client{},
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues a GET request with headers added to the client's and
// returns the status code. The body is drained so the connection can be
// reused.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string) (int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, rawURL, "*/*", headers)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBodySize)); err != nil {
		c.logger.DebugContext(ctx, "failed to drain response body", "url", rawURL, "error", err)
	}
	return resp.StatusCode, nil
}

// Get issues a GET request and reads the body.
// Non-2xx responses are returned without error; check Response.OK.
func (c *Client) Get(ctx context.Context, rawURL, accept string) (*Response, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, rawURL, accept, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}

	return &Response{
		Status: resp.StatusCode,
		URL:    resp.Request.URL,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do sends a GET request with the client's headers, then extra.
func (c *Client) do(ctx context.Context, rawURL, accept string, extra map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "url", rawURL, "error", err)
		return nil, err
	}
	c.logger.DebugContext(ctx, "request completed",
		"url", rawURL,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}
