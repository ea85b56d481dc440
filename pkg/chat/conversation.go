package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/google/uuid"
)

// Options configures a Conversation
type Options struct {
	Key      string        // Conversation key in the session store; generated when empty
	Profile  Profile       // Calling-surface parameters
	Issuer   SessionIssuer // Required
	Opener   StreamOpener  // Required
	Store    SessionStore  // Defaults to an in-memory store
	Notifier Notifier      // Defaults to LogNotifier

	// OnChange is called with a transcript snapshot after every mutation. It runs while the
	// conversation is locked and must not call back into the conversation.
	OnChange func([]Message)

	IdleTimeout   time.Duration // Defaults to DefaultIdleTimeout; negative disables
	MaxFrameBytes int           // Defaults to sdk.DefaultMaxFrameBytes
}

// Conversation is the handle for one chat with the coach. It owns the transcript and
// keeps at most one stream run alive at a time.
type Conversation struct {
	key        string
	profile    Profile
	issuer     SessionIssuer
	sessions   SessionStore
	controller *Controller
	notifier   Notifier
	onChange   func([]Message)

	sessionMu sync.Mutex // serializes session bootstrap

	mu          sync.Mutex
	transcript  transcript
	current     *Run
	currentSink *runSink
	busy        bool
}

// NewConversation creates a conversation handle
func NewConversation(opts Options) (*Conversation, error) {
	if opts.Issuer == nil {
		return nil, fmt.Errorf("a session issuer must be provided")
	}
	if opts.Opener == nil {
		return nil, fmt.Errorf("a stream opener must be provided")
	}

	if opts.Key == "" {
		opts.Key = uuid.NewString()
	}
	if opts.Store == nil {
		opts.Store = NewMemorySessionStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Profile.BusyPolicy == "" {
		opts.Profile.BusyPolicy = BusyReject
	}

	idle := opts.IdleTimeout
	switch {
	case idle == 0:
		idle = DefaultIdleTimeout
	case idle < 0:
		idle = 0
	}

	c := &Conversation{
		key:      opts.Key,
		profile:  opts.Profile,
		issuer:   opts.Issuer,
		sessions: opts.Store,
		notifier: opts.Notifier,
		onChange: opts.OnChange,
		controller: NewController(opts.Opener, ControllerOptions{
			IdleTimeout:   idle,
			MaxFrameBytes: opts.MaxFrameBytes,
		}),
	}

	c.mu.Lock()
	c.greetLocked()
	c.mu.Unlock()

	return c, nil
}

// Key returns the conversation key used in the session store
func (c *Conversation) Key() string {
	return c.key
}

// SessionID returns the current session id, if one has been issued
func (c *Conversation) SessionID() (string, bool) {
	return c.sessions.Get(c.key)
}

// Transcript returns a snapshot of the transcript
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.snapshot()
}

// Busy reports whether a send is in progress
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// State returns the state of the current run, or StateIdle when no run is active
func (c *Conversation) State() RunState {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()

	if run == nil {
		return StateIdle
	}
	return run.State()
}

// SendMessage sends a user message and starts streaming the reply. It returns the run
// token, or nil when the message was ignored or the session could not be created.
// Failures are reported through the notifier, never returned.
func (c *Conversation) SendMessage(ctx context.Context, text string) *Run {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Reserve the conversation before bootstrapping so a concurrent send sees it busy
	c.mu.Lock()
	if c.busy && c.profile.BusyPolicy != BusySupersede {
		c.mu.Unlock()
		log.Printf("[CHAT]: Conversation %s is busy, ignoring message", c.key)
		return nil
	}
	c.busy = true
	c.mu.Unlock()

	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		c.mu.Lock()
		if c.current == nil {
			c.busy = false
		}
		c.mu.Unlock()

		c.notifier.Notify(Notice{Kind: NoticeSessionInit, Message: "Could not start a conversation. Please try again.", Err: err})
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Supersede whatever is still running before the new run can apply anything. Its
	// partial reply is finalized and becomes part of the history.
	if c.current != nil {
		c.cancelLocked()
	}

	req := &sdk.ChatRequest{
		Message:             text,
		ConversationID:      sessionID,
		ConversationHistory: c.transcript.history(),
		Metadata:            c.profile.metadata(),
	}

	c.transcript.append(NewMessage(sdk.SpeakerUser, text))
	c.changedLocked()

	sink := &runSink{conv: c}
	run := c.controller.Start(ctx, req, sink)
	c.current = run
	c.currentSink = sink
	c.busy = true

	return run
}

// Cancel stops the given run. Cancelling a run that is no longer current only stops its
// read loop.
func (c *Conversation) Cancel(run *Run) {
	if run == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == run {
		c.cancelLocked()
		return
	}
	run.Cancel()
}

// Abort stops the active run, if any
func (c *Conversation) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.cancelLocked()
	}
}

// Clear aborts any active run, forgets the session and empties the transcript. The next
// send issues a new session.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.cancelLocked()
	}

	c.sessions.Delete(c.key)
	c.transcript.reset()
	c.greetLocked()
	c.changedLocked()
}

// cancelLocked finalizes and cancels the current run. Called with mu held.
func (c *Conversation) cancelLocked() {
	run, sink := c.current, c.currentSink

	run.Cancel()
	if sink.interp.finish(&c.transcript) {
		c.changedLocked()
	}

	c.current = nil
	c.currentSink = nil
	c.busy = false
}

// greetLocked appends the profile greeting, if it has one
func (c *Conversation) greetLocked() {
	if c.profile.Greeting == nil {
		return
	}
	c.transcript.append(c.profile.Greeting())
}

// changedLocked reports the transcript to the observer
func (c *Conversation) changedLocked() {
	if c.onChange != nil {
		c.onChange(c.transcript.snapshot())
	}
}

// runSink connects a run's events to the conversation transcript
type runSink struct {
	conv   *Conversation
	interp interpreter
}

// Apply interprets one event, unless the run has been superseded or cancelled
func (s *runSink) Apply(run *Run, ev sdk.StreamEvent) {
	c := s.conv
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != run || run.Cancelled() {
		return
	}

	if s.interp.apply(&c.transcript, ev) {
		c.changedLocked()
	}
}

// Finish cleans up after a run and reports surfaced failures
func (s *runSink) Finish(run *Run, result RunResult) {
	c := s.conv
	c.mu.Lock()

	changed := s.interp.finish(&c.transcript)

	// A superseded or aborted run may have failed before it was cancelled. Its outcome
	// no longer belongs to the conversation.
	if c.current != run {
		if changed {
			c.changedLocked()
		}
		c.mu.Unlock()

		log.Printf("[CHAT]: Replaced run for conversation %s ended: %s", c.key, result.State)
		return
	}

	c.current = nil
	c.currentSink = nil
	c.busy = false

	var notice *Notice
	if result.State == StateFailed {
		var unavailable *sdk.CapabilityUnavailableError
		if errors.As(result.Err, &unavailable) {
			msg := unavailable.Message
			if msg == "" {
				msg = "The coach is temporarily unavailable. Please try again later."
			}
			notice = &Notice{Kind: NoticeCapabilityUnavailable, Message: msg, Err: result.Err}
		} else {
			notice = &Notice{Kind: NoticeTransport, Message: "Something went wrong while talking to the coach.", Err: result.Err}
			if c.profile.FailureMessage != "" {
				c.transcript.append(NewMessage(sdk.SpeakerSystem, c.profile.FailureMessage))
				changed = true
			}
		}
	}

	if changed {
		c.changedLocked()
	}
	c.mu.Unlock()

	log.Printf("[CHAT]: Run for conversation %s ended: %s (events: %d, dropped: %d)", c.key, result.State, result.Events, result.Dropped)

	if notice != nil {
		c.notifier.Notify(*notice)
	}
}
