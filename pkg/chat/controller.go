package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
)

// RunState is a stream run's position in its lifecycle. A Run holds StateIdle only before its
// read loop starts and keeps its terminal state afterwards; the conversation reports StateIdle
// again once it has no current run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateOpening   RunState = "opening"
	StateStreaming RunState = "streaming"
	StateCompleted RunState = "completed"
	StateCancelled RunState = "cancelled"
	StateFailed    RunState = "failed"
)

// Terminal reports whether the state ends a run
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// RunResult describes how a run ended
type RunResult struct {
	State   RunState
	Err     error // nil when completed, ErrCancelled when cancelled
	Events  int   // Events handed to the sink
	Dropped int   // Frames discarded by the decoder
}

// StreamOpener opens the orchestration event stream for one chat request
type StreamOpener interface {
	OpenStream(ctx context.Context, req *sdk.ChatRequest) (io.ReadCloser, error)
}

// Sink consumes the events of a run. Apply is never called after Finish, and Finish is
// called exactly once per run.
type Sink interface {
	Apply(run *Run, ev sdk.StreamEvent)
	Finish(run *Run, result RunResult)
}

// ControllerOptions tunes the read loop
type ControllerOptions struct {
	IdleTimeout    time.Duration // Abort when no bytes arrive for this long; zero disables
	MaxFrameBytes  int           // Decoder buffer limit; zero uses sdk.DefaultMaxFrameBytes
	ReadBufferSize int           // Size of each body read; zero uses 4KiB
}

const (
	DefaultIdleTimeout    = 60 * time.Second
	defaultReadBufferSize = 4096
)

// Controller runs stream read loops
type Controller struct {
	opener StreamOpener
	opts   ControllerOptions
}

// NewController creates a controller over the given stream opener
func NewController(opener StreamOpener, opts ControllerOptions) *Controller {
	if opts.MaxFrameBytes == 0 {
		opts.MaxFrameBytes = sdk.DefaultMaxFrameBytes
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}

	return &Controller{opener: opener, opts: opts}
}

// Run is the cancellation token of a single stream run
type Run struct {
	ctx       context.Context
	cancel    context.CancelCauseFunc
	cancelled atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	state  RunState
	result RunResult
}

// Cancel stops the run. No further events reach the sink once Cancel returns.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.cancel(ErrCancelled)
}

// Cancelled reports whether Cancel has been called
func (r *Run) Cancelled() bool {
	return r.cancelled.Load()
}

// Done is closed once the run has finished and its sink has been told
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has finished and returns its result
func (r *Run) Wait() RunResult {
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// State returns the run's current state
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Start opens a new run in the background and returns its token
func (c *Controller) Start(ctx context.Context, req *sdk.ChatRequest, sink Sink) *Run {
	runCtx, cancel := context.WithCancelCause(ctx)
	run := &Run{
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateIdle,
	}

	go c.loop(run, req, sink)

	return run
}

// loop performs the request and pumps the body through the decoder into the sink
func (c *Controller) loop(run *Run, req *sdk.ChatRequest, sink Sink) {
	defer close(run.done)
	defer run.cancel(nil)

	result := RunResult{}
	finish := func(err error) {
		res := c.classify(run, err)
		res.Events = result.Events
		res.Dropped = result.Dropped

		run.mu.Lock()
		run.state = res.State
		run.result = res
		run.mu.Unlock()

		sink.Finish(run, res)
	}

	run.setState(StateOpening)
	body, err := c.opener.OpenStream(run.ctx, req)
	if err != nil {
		finish(err)
		return
	}
	defer body.Close()

	// Unblock a pending read as soon as the run is cancelled
	stop := context.AfterFunc(run.ctx, func() { body.Close() })
	defer stop()

	var idle *time.Timer
	if c.opts.IdleTimeout > 0 {
		idle = time.AfterFunc(c.opts.IdleTimeout, func() { run.cancel(ErrStreamIdle) })
		defer idle.Stop()
	}

	run.setState(StateStreaming)
	dec := sdk.NewDecoder(c.opts.MaxFrameBytes)
	buf := make([]byte, c.opts.ReadBufferSize)

	deliver := func(events []sdk.StreamEvent) bool {
		for _, ev := range events {
			if run.ctx.Err() != nil {
				return false
			}
			sink.Apply(run, ev)
			result.Events++
		}
		return true
	}

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if idle != nil {
				idle.Reset(c.opts.IdleTimeout)
			}

			events, derr := dec.Feed(buf[:n])
			result.Dropped = dec.Dropped()
			if !deliver(events) {
				finish(context.Cause(run.ctx))
				return
			}
			if derr != nil {
				finish(derr)
				return
			}
		}

		if rerr == io.EOF {
			if run.ctx.Err() == nil {
				deliver(dec.Flush())
				result.Dropped = dec.Dropped()
			}
			finish(context.Cause(run.ctx))
			return
		}
		if rerr != nil {
			finish(rerr)
			return
		}
	}
}

// classify maps the loop's exit error onto a terminal state
func (c *Controller) classify(run *Run, err error) RunResult {
	cause := context.Cause(run.ctx)

	switch {
	case run.Cancelled() || errors.Is(cause, ErrCancelled):
		return RunResult{State: StateCancelled, Err: ErrCancelled}

	case errors.Is(cause, ErrStreamIdle):
		return RunResult{State: StateFailed, Err: &sdk.TransportError{Op: "read stream", Err: ErrStreamIdle}}

	case cause != nil:
		// The caller's context ended; treat it like an explicit abort
		return RunResult{State: StateCancelled, Err: ErrCancelled}

	case err == nil:
		return RunResult{State: StateCompleted}
	}

	var unavailable *sdk.CapabilityUnavailableError
	var transport *sdk.TransportError
	if errors.As(err, &unavailable) || errors.As(err, &transport) {
		return RunResult{State: StateFailed, Err: err}
	}

	return RunResult{State: StateFailed, Err: &sdk.TransportError{Op: "read stream", Err: err}}
}
