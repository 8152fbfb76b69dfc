package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/database"
)

// Response is the result of a page fetch.
type Response struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the full response body, capped at the client's body limit.
	Body []byte

	// FromCache reports whether the response was served from the cache
	// without touching the network.
	FromCache bool
}

// Client fetches pages and lesson packages from the site.
// It is safe for concurrent use; the politeness delay is enforced across
// all goroutines sharing the client.
type Client struct {
	// httpClient performs the actual requests.
	httpClient *http.Client

	// cache is the optional response cache. Nil disables caching.
	cache *database.CacheDB

	// userAgent is sent with every request.
	userAgent string

	// delay is the minimum spacing between uncached requests.
	delay time.Duration

	// maxBodySize caps response bodies read into memory or to disk.
	maxBodySize int64

	// logger for structured logging.
	logger *slog.Logger

	// mu guards nextAllowed.
	mu sync.Mutex

	// nextAllowed is the earliest time the next network request may start.
	nextAllowed time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables response caching through the given CacheDB.
func WithCache(cache *database.CacheDB) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithDelay sets the politeness delay between uncached requests.
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying http.Client. Used in tests to
// point the client at an httptest server with custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client with the given per-request timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		userAgent:   "descartes-chef",
		delay:       0,
		maxBodySize: 256 * 1024 * 1024,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get fetches url, serving from the cache when possible.
// Non-2xx responses are returned, not treated as errors; callers decide
// what a 404 means for them. Only 2xx responses are cached.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if c.cache != nil {
		cached, err := c.cache.GetResponse(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("cache lookup failed: %w", err)
		}
		if cached != nil {
			c.logger.Debug("cache hit", "url", url)
			return &Response{
				URL:         url,
				StatusCode:  cached.StatusCode,
				ContentType: cached.ContentType,
				Body:        cached.Body,
				FromCache:   true,
			}, nil
		}
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	result := &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	if c.cache != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		err := c.cache.PutResponse(ctx, &database.CachedResponse{
			URL:         url,
			StatusCode:  result.StatusCode,
			ContentType: result.ContentType,
			Body:        result.Body,
		})
		if err != nil {
			// A failed cache write degrades to an uncached fetch.
			c.logger.Warn("failed to cache response", "url", url, "error", err)
		}
	}

	c.logger.Debug("fetched", "url", url, "status", result.StatusCode, "bytes", len(body))
	return result, nil
}

// Download streams url into a fresh temp file and returns its path.
// The caller owns the file. Responses other than 200 are an error here,
// unlike Get, because a lesson package either downloads fully or the
// lesson is skipped.
func (c *Client) Download(ctx context.Context, url string) (string, error) {
	if err := c.waitTurn(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned status %d", url, resp.StatusCode)
	}

	out, err := os.CreateTemp("", "descartes-download-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("failed to write download of %s: %w", url, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(out.Name())
		return "", fmt.Errorf("failed to close download of %s: %w", url, err)
	}

	c.logger.Debug("downloaded", "url", url, "bytes", written, "path", out.Name())
	return out.Name(), nil
}

// waitTurn blocks until this request's politeness slot arrives.
// Slots are handed out in call order; each network request pushes the next
// slot out by the configured delay.
func (c *Client) waitTurn(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	wait := time.Duration(0)
	if c.nextAllowed.After(now) {
		wait = c.nextAllowed.Sub(now)
	}
	c.nextAllowed = now.Add(wait + c.delay)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
