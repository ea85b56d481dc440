package sdk

import (
	"errors"
	"fmt"
)

// ErrFrameTooLarge is returned by the decoder when a single frame outgrows its buffer limit
var ErrFrameTooLarge = errors.New("stream frame exceeds maximum buffered size")

// CapabilityUnavailableError is returned when the backend answers 503. Message is the
// server-provided notice and is meant to be shown to the user verbatim.
type CapabilityUnavailableError struct {
	Message string
}

func (e *CapabilityUnavailableError) Error() string {
	if e.Message == "" {
		return "capability temporarily unavailable"
	}
	return "capability temporarily unavailable: " + e.Message
}

// TransportError covers every other non-2xx status and read-level network faults
type TransportError struct {
	Op         string // Operation that failed, e.g. "POST /api/chat/stream"
	StatusCode int    // HTTP status, zero for network faults
	Body       string // Truncated response body, if any
	Err        error  // Underlying error for network faults
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[SDK]: backend '%s' failed: %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("[SDK]: backend '%s' failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
