// Package eodhd provides a fallback quote source backed by the EODHD real-time API.
package eodhd

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/psuscan/internal/retry"
)

// ErrNoQuote is returned when EODHD has no usable price for a symbol
var ErrNoQuote = fmt.Errorf("no EODHD quote: %w", retry.ErrPermanent)

// APIError represents an error from the EODHD API.
type APIError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.Status, e.Endpoint)
}

// StatusCode returns the HTTP status
func (e *APIError) StatusCode() int { return e.Status }

// Host tags the error with the API host
func (e *APIError) Host() retry.Host { return retry.HostAPI }

// RateLimitError represents a 429 from EODHD.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("EODHD rate limit exceeded on %s", e.Endpoint)
}

// StatusCode always reports 429
func (e *RateLimitError) StatusCode() int { return http.StatusTooManyRequests }

// Host tags the error with the API host
func (e *RateLimitError) Host() retry.Host { return retry.HostAPI }

// number decodes EODHD numeric fields, which arrive as numbers, numeric strings or "NA"
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("NA")) || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", data, err)
	}
	*n = number(f)
	return nil
}

// realtimeResponse is the /real-time/{symbol} payload
type realtimeResponse struct {
	Code          string `json:"code"`
	Timestamp     number `json:"timestamp"`
	Close         number `json:"close"`
	PreviousClose number `json:"previousClose"`
}

// price returns the last trade, falling back to the previous close
func (r realtimeResponse) price() float64 {
	if r.Close > 0 {
		return float64(r.Close)
	}
	return float64(r.PreviousClose)
}

func (r realtimeResponse) updated() time.Time {
	if r.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(r.Timestamp), 0).UTC()
}
