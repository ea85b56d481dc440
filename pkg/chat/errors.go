package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks a run that was superseded or aborted. It is never surfaced to the user.
	ErrCancelled = errors.New("stream run cancelled")

	// ErrStreamIdle is the cause recorded when a stream produces no bytes within the idle timeout
	ErrStreamIdle = errors.New("stream idle timeout exceeded")
)

// SessionInitError is returned when the session issuer fails. The send is aborted before
// the transcript is touched and may be retried by sending again.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("failed to initialize session: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}
