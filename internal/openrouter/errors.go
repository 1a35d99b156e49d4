package openrouter

import (
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteStream indicates an SSE stream that ended before any event
// carried a choices payload.
var ErrIncompleteStream = errors.New("stream ended without a final completion payload")

// ParseError indicates a response body or stream chunk that could not be
// decoded. Preview holds the start of the offending text for debugging.
type ParseError struct {
	Reason  string
	Preview string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decoding response (%s): %s", e.Reason, e.Preview)
}

// APIError is an error reported by the API inside an otherwise well-formed
// response envelope. Transient server and rate-limit failures arrive this
// way, so callers treat it as retryable.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "API error"
	}
	return "API error: " + e.Message
}

// MalformedResponseError indicates an envelope missing choices[0].message.
// Distinct from APIError: the API claimed success but returned no content.
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Detail
}

// TimeoutError indicates the per-request deadline fired before the API
// answered. Retryable, unlike cancellation.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.After)
}
