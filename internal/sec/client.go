// -----------------------------------------------------------------------
// SEC document client - downloads filing documents and reduces them to text
// -----------------------------------------------------------------------

// Package sec downloads SEC filing documents and recognises Form 4 filings.
package sec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/retry"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the document download timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMinInterval spaces downloads made by this client.
	DefaultMinInterval = 2 * time.Second

	// DefaultCacheTTL keeps downloaded text for retried tickers.
	DefaultCacheTTL = 30 * time.Minute

	// DefaultUserAgent identifies the scanner to EDGAR, which rejects anonymous clients.
	DefaultUserAgent = "psuscan research contact@example.com"

	// maxDocumentBytes caps a single download
	maxDocumentBytes = 20 << 20
)

// FetchError represents a non-200 response from the document host.
type FetchError struct {
	Status int
	URL    string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("SEC document request failed (status: %d, url: %s)", e.Status, e.URL)
}

// StatusCode returns the HTTP status
func (e *FetchError) StatusCode() int { return e.Status }

// Host tags the error with the document host
func (e *FetchError) Host() retry.Host { return retry.HostSEC }

// Client downloads filing documents.
type Client struct {
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithRateLimit sets the minimum spacing between downloads. Zero disables the limiter.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithCacheTTL sets how long downloaded text is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a document client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		cache:      cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchContent downloads filingURL and returns its readable text.
// An empty document yields "" with a nil error.
func (c *Client) FetchContent(ctx context.Context, filingURL string) (string, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(filingURL); ok {
			return v.(string), nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("waiting for download slot: %w", context.DeadlineExceeded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, filingURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", retry.ErrPermanent)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", filingURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{Status: resp.StatusCode, URL: filingURL}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filingURL, err)
	}

	text := DocumentText(string(raw))

	if c.logger != nil {
		c.logger.Debug().
			Str("url", filingURL).
			Int("bytes", len(raw)).
			Int("text_len", len(text)).
			Msg("Downloaded filing document")
	}

	if c.cache != nil && text != "" {
		c.cache.SetDefault(filingURL, text)
	}
	return text, nil
}

// CachedDocuments returns the number of cached documents
func (c *Client) CachedDocuments() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}

// IsMarkup reports whether body looks like HTML, XML or SGML
func IsMarkup(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "<html") || strings.Contains(trimmed, "<XML>")
}
