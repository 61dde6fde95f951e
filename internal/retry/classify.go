// Package retry classifies external failures and schedules bounded, kind-specific backoff.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Kind is the failure classification that selects a backoff schedule
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindRateLimit
	KindNetwork
	KindMalformed
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Host identifies which external service produced a failure
type Host string

const (
	HostUnknown Host = ""
	HostAPI     Host = "api" // price and filing index API
	HostSEC     Host = "sec" // filing document host
)

// status429 matches a bare 429 status in an error message
var status429 = regexp.MustCompile(`\b429\b`)

// ErrMalformed marks a response that decoded but lacked expected data
var ErrMalformed = errors.New("malformed response")

// ErrPermanent marks a failure that retrying cannot fix
var ErrPermanent = errors.New("permanent failure")

// StatusCoder is implemented by errors that carry an HTTP status
type StatusCoder interface {
	StatusCode() int
}

// HostTagger is implemented by errors that know which service they came from
type HostTagger interface {
	Host() Host
}

// Classify maps an error to a Kind.
// Rate-limit signals win over every other classification, including network errors.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	msg := strings.ToLower(err.Error())

	var sc StatusCoder
	hasStatus := errors.As(err, &sc)

	if hasStatus && sc.StatusCode() == http.StatusTooManyRequests {
		return KindRateLimit
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || status429.MatchString(msg) {
		return KindRateLimit
	}

	if errors.Is(err, ErrPermanent) {
		return KindPermanent
	}
	if hasStatus {
		code := sc.StatusCode()
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout {
			return KindPermanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if hasStatus && (sc.StatusCode() == http.StatusRequestTimeout || sc.StatusCode() == http.StatusGatewayTimeout) {
		return KindTimeout
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return KindTimeout
	}

	if errors.Is(err, ErrMalformed) {
		return KindMalformed
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &netErr) {
		return KindNetwork
	}
	if hasStatus && sc.StatusCode() >= 500 {
		return KindNetwork
	}
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "eof") {
		return KindNetwork
	}

	return KindUnknown
}

// HostOf returns the service tag carried by err, if any
func HostOf(err error) Host {
	var ht HostTagger
	if errors.As(err, &ht) {
		return ht.Host()
	}
	return HostUnknown
}
