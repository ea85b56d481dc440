package chat

import (
	"context"

	"github.com/ethanbaker/coach/pkg/sdk"
)

// EmitFunc writes one event frame to the client
type EmitFunc func(ev sdk.StreamEvent) error

// Responder produces the reply events for one chat message. Returning after the request
// context ends is expected; the stream is simply closed.
type Responder interface {
	Respond(ctx context.Context, req *sdk.ChatRequest, emit EmitFunc) error
}
