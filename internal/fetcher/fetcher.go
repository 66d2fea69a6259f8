package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Request header profile. Comic article hosts and their image CDNs reject
// obvious bot traffic and hotlinking, so requests carry a desktop browser
// profile and a referer.
const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	pageAccept       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	imageAccept      = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"
	acceptLanguage   = "ja,en-US;q=0.9,en;q=0.8"
)

// DefaultMaxBodySize limits how much of a response body is read.
// 20MB covers full-resolution comic pages with margin.
const DefaultMaxBodySize = 20 * 1024 * 1024

// FetchError is the typed failure of a single fetch. Every fetch is
// attempted exactly once; the error distinguishes transport failures,
// timeouts, and non-success HTTP statuses so callers can log precisely,
// but all three are equally terminal for the affected URL.
type FetchError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status when the server responded with a
	// non-success status, 0 otherwise.
	StatusCode int

	// Timeout indicates the request exceeded the configured deadline.
	Timeout bool

	// Err is the underlying transport error, nil for status failures.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timeout", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches article pages and images with a fixed browser-like header
// profile. It fails closed: any transport error or non-2xx status yields a
// *FetchError and no retry is attempted.
type Client struct {
	client      *http.Client
	maxBodySize int64
	headers     map[string]string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithExtraHeaders sets additional headers sent with page requests,
// typically from a site profile (e.g., a Cookie).
func WithExtraHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with the given per-request timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		client:      &http.Client{Timeout: timeout},
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPage fetches an article page and returns the raw HTML.
// The referer is set to the scheme+host of the target URL, matching how a
// browser arrives at an article from the site's front page.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	headers := map[string]string{
		"User-Agent":      browserUserAgent,
		"Accept":          pageAccept,
		"Accept-Language": acceptLanguage,
		"Referer":         u.Scheme + "://" + u.Host,
	}
	for k, v := range c.headers {
		headers[k] = v
	}

	return c.get(ctx, pageURL, headers)
}

// FetchImage fetches an image with the referer set to the page it was
// discovered on. Most comic CDNs enforce referer checks on hotlinking.
func (c *Client) FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	headers := map[string]string{
		"User-Agent": browserUserAgent,
		"Accept":     imageAccept,
		"Referer":    referer,
	}

	return c.get(ctx, imageURL, headers)
}

// get performs a single GET request. No retry on any failure.
func (c *Client) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		fe := &FetchError{URL: rawURL, Err: err}
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			fe.Timeout = true
		}
		c.logger.Debug("fetch failed", "url", rawURL, "error", err)
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("fetch rejected", "url", rawURL, "status", resp.StatusCode)
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	return body, nil
}
