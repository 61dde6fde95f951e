// Package ninjas provides a client for the API Ninjas stock price and SEC filing index endpoints.
package ninjas

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/psuscan/internal/retry"
)

// ErrPriceUnavailable is returned when the API has no price for a ticker
var ErrPriceUnavailable = fmt.Errorf("price unavailable: %w", retry.ErrPermanent)

// ErrMissingAPIKey is returned by requests made without a key
var ErrMissingAPIKey = errors.New("API Ninjas key not configured")

// APIError represents a non-200 response from the API.
type APIError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Ninjas error: %s (status: %d, endpoint: %s)", e.Message, e.Status, e.Endpoint)
}

// StatusCode returns the HTTP status
func (e *APIError) StatusCode() int { return e.Status }

// Host tags the error with the API host
func (e *APIError) Host() retry.Host { return retry.HostAPI }

// RateLimitError represents a 429 from the API.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("API Ninjas rate limit exceeded on %s, retry after %v", e.Endpoint, e.RetryAfter)
}

// StatusCode always reports 429
func (e *RateLimitError) StatusCode() int { return http.StatusTooManyRequests }

// Host tags the error with the API host
func (e *RateLimitError) Host() retry.Host { return retry.HostAPI }

// priceResponse is the /v1/stockprice payload
type priceResponse struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Exchange string  `json:"exchange"`
	Currency string  `json:"currency"`
	Updated  int64   `json:"updated"`
}

// filingResponse is one /v1/sec entry
type filingResponse struct {
	Ticker          string `json:"ticker"`
	FilingDate      string `json:"filing_date"`
	FilingURL       string `json:"filing_url"`
	FormType        string `json:"form_type"`
	AccessionNumber string `json:"accession_number"`
}
