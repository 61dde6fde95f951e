package ninjas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/models"
	"github.com/ternarybob/psuscan/internal/retry"
	"github.com/ternarybob/psuscan/internal/sec"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for API Ninjas.
	DefaultBaseURL = "https://api.api-ninjas.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMinInterval spaces requests made by this client.
	DefaultMinInterval = time.Second

	// filingLimit is the maximum page size of the filing index
	filingLimit = 100

	dateLayout = "2006-01-02"
)

// Client is an API Ninjas client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
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

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum spacing between requests. Zero disables the limiter.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// NewClient creates a new API Ninjas client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get performs a GET request and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// the limiter refuses waits that would outlive the deadline
		return nil, fmt.Errorf("waiting for request slot: %w", context.DeadlineExceeded)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Str("ticker", params.Get("ticker")).
			Msg("API Ninjas request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Endpoint: path, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(body)),
			Endpoint: path,
		}
	}

	return body, nil
}

// GetStockPrice returns the latest price for ticker.
// An empty or zero-priced response yields ErrPriceUnavailable.
func (c *Client) GetStockPrice(ctx context.Context, ticker string) (*models.PriceQuote, error) {
	params := url.Values{}
	params.Set("ticker", ticker)

	body, err := c.get(ctx, "/v1/stockprice", params)
	if err != nil {
		return nil, err
	}

	var result priceResponse
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("{}")), bytes.Equal(trimmed, []byte("[]")):
		return nil, fmt.Errorf("%s: %w", ticker, ErrPriceUnavailable)
	case trimmed[0] == '[':
		var list []priceResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode price: %w", err)
		}
		result = list[0]
	default:
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return nil, fmt.Errorf("failed to decode price: %w", err)
		}
	}

	if result.Price <= 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrPriceUnavailable)
	}

	quote := &models.PriceQuote{
		Ticker:   result.Ticker,
		Name:     result.Name,
		Price:    result.Price,
		Exchange: result.Exchange,
		Currency: result.Currency,
	}
	if quote.Ticker == "" {
		quote.Ticker = ticker
	}
	if result.Updated > 0 {
		quote.Updated = time.Unix(result.Updated, 0).UTC()
	}
	return quote, nil
}

// SearchForm4Filings lists Form 4 filings between from and to, newest first.
// Entries whose form type or URL does not look like a Form 4 are dropped.
func (c *Client) SearchForm4Filings(ctx context.Context, ticker string, from, to time.Time) ([]models.Filing, error) {
	params := url.Values{}
	params.Set("ticker", ticker)
	params.Set("filing", "4")
	params.Set("start", from.Format(dateLayout))
	params.Set("end", to.Format(dateLayout))
	params.Set("limit", strconv.Itoa(filingLimit))

	body, err := c.get(ctx, "/v1/sec", params)
	if err != nil {
		return nil, err
	}

	var list []filingResponse
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to decode filings: %w", err)
		}
	} else if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("{}")) {
		return nil, fmt.Errorf("unexpected filings payload for %s: %w", ticker, retry.ErrMalformed)
	}

	filings := make([]models.Filing, 0, len(list))
	for _, f := range list {
		filings = append(filings, models.Filing{
			Ticker:          ticker,
			FilingDate:      normalizeDate(f.FilingDate),
			FilingURL:       f.FilingURL,
			FormType:        f.FormType,
			AccessionNumber: f.AccessionNumber,
		})
	}

	kept := sec.FilterForm4(filings)
	if c.logger != nil && len(kept) != len(filings) {
		c.logger.Debug().
			Str("ticker", ticker).
			Int("returned", len(filings)).
			Int("kept", len(kept)).
			Msg("Dropped non Form 4 entries")
	}
	return kept, nil
}

// normalizeDate trims timestamps like 2025-01-02T00:00:00 to the date
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		if _, err := time.Parse(dateLayout, s[:len(dateLayout)]); err == nil {
			return s[:len(dateLayout)]
		}
	}
	return s
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
