package edgar

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
)

// ErrorKind classifies an upstream failure. Retry policy and circuit
// tripping branch on the kind, never on error text.
type ErrorKind int

const (
	// KindTimeout is a per-attempt deadline expiry.
	KindTimeout ErrorKind = iota
	// KindConnection is a transport-level failure (refused, reset, DNS).
	KindConnection
	// KindServer is a 5xx response.
	KindServer
	// KindRateLimited is a 429 response from the upstream.
	KindRateLimited
	// KindNotFound is a 404: the entity or document does not exist.
	KindNotFound
	// KindClient is any other 4xx; the request itself is wrong.
	KindClient
	// KindParse means the response body was not the expected shape.
	KindParse
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindServer:
		return "server"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindClient:
		return "client"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is a typed upstream failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("edgar: %s (status %d) fetching %s", e.Kind, e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("edgar: %s fetching %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("edgar: %s fetching %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed attempt is worth retrying with
// backoff: timeouts, transport failures, 5xx, and 429. Client errors and
// parse failures are permanent for a given request.
func IsRetryable(err error) bool {
	var ee *Error
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Kind {
	case KindTimeout, KindConnection, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsUpstreamFailure reports whether an error signals upstream ill-health
// and should count toward tripping the circuit breaker. 429s are excluded:
// they mean this client is over the ceiling, not that EDGAR is degraded.
func IsUpstreamFailure(err error) bool {
	var ee *Error
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Kind {
	case KindTimeout, KindConnection, KindServer:
		return true
	default:
		return false
	}
}

// classifyTransport maps a transport error from http.Client.Do to a kind.
func classifyTransport(reqURL string, err error) *Error {
	kind := KindConnection

	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		kind = KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = KindTimeout
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, URL: reqURL, Err: err}
}

// classifyStatus maps a non-2xx HTTP status to a kind.
func classifyStatus(reqURL string, status int) *Error {
	var kind ErrorKind
	switch {
	case status == 404:
		kind = KindNotFound
	case status == 429:
		kind = KindRateLimited
	case status >= 500:
		kind = KindServer
	default:
		kind = KindClient
	}
	return &Error{Kind: kind, StatusCode: status, URL: reqURL}
}
