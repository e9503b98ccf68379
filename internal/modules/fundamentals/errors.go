package fundamentals

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbrief/edgar-pipeline/internal/clients/edgar"
	"github.com/finbrief/edgar-pipeline/internal/reliability"
)

// FailureKind partitions every pipeline failure into one of five cases so
// callers can branch on kind instead of string-matching error text.
type FailureKind int

const (
	// FailRateLimited means the upstream rejected us for pacing (HTTP 429).
	FailRateLimited FailureKind = iota
	// FailCircuitOpen means the breaker rejected the call without attempting it.
	FailCircuitOpen
	// FailUpstreamUnavailable covers timeouts, connection errors and 5xx
	// after retries were exhausted.
	FailUpstreamUnavailable
	// FailNotFound means the entity or filing does not exist upstream.
	FailNotFound
	// FailParse means the upstream responded but the document was unusable.
	FailParse
)

func (k FailureKind) String() string {
	switch k {
	case FailRateLimited:
		return "rate_limited"
	case FailCircuitOpen:
		return "circuit_open"
	case FailUpstreamUnavailable:
		return "upstream_unavailable"
	case FailNotFound:
		return "not_found"
	case FailParse:
		return "parse_failed"
	default:
		return "unknown"
	}
}

// PipelineError is the single error type the pipeline returns. Wraps the
// underlying cause for errors.Is/As chains.
type PipelineError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may reasonably try again shortly.
// NotFound and parse failures are stable; retrying them wastes quota.
func (e *PipelineError) Retryable() bool {
	switch e.Kind {
	case FailRateLimited, FailCircuitOpen, FailUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// Classify maps transport-layer errors into the pipeline taxonomy. Every
// surface returning pipeline results runs its errors through here so
// callers see one kind vocabulary regardless of which operation failed.
func Classify(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, reliability.ErrCircuitOpen) {
		return &PipelineError{Kind: FailCircuitOpen, Message: "upstream temporarily disabled", Err: err}
	}

	var ee *edgar.Error
	if errors.As(err, &ee) {
		switch ee.Kind {
		case edgar.KindRateLimited:
			return &PipelineError{Kind: FailRateLimited, Message: "upstream rate limit hit", Err: err}
		case edgar.KindNotFound:
			return &PipelineError{Kind: FailNotFound, Message: "not found upstream", Err: err}
		case edgar.KindParse:
			return &PipelineError{Kind: FailParse, Message: "upstream document unusable", Err: err}
		case edgar.KindClient:
			// Any other 4xx: the request itself is wrong, permanently.
			return &PipelineError{Kind: FailNotFound, Message: "upstream rejected request", Err: err}
		default:
			return &PipelineError{Kind: FailUpstreamUnavailable, Message: "upstream unavailable", Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &PipelineError{Kind: FailUpstreamUnavailable, Message: "deadline exceeded", Err: err}
	}

	return &PipelineError{Kind: FailUpstreamUnavailable, Message: "fetch failed", Err: err}
}
