package chat

import (
	"log"
	"net/http"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/gin-gonic/gin"
)

const unavailableMessage = "The coach is busy with other conversations right now. Please try again in a minute."

// Module serves session issuance and the chat event stream
type Module struct {
	sessions  *Registry
	responder Responder
	slots     chan struct{} // nil means unlimited concurrent streams
}

// NewModule creates the chat module. maxStreams <= 0 disables the concurrency limit.
func NewModule(sessions *Registry, responder Responder, maxStreams int) *Module {
	m := &Module{sessions: sessions, responder: responder}
	if maxStreams > 0 {
		m.slots = make(chan struct{}, maxStreams)
	}
	return m
}

// Sessions returns the module's session registry
func (m *Module) Sessions() *Registry {
	return m.sessions
}

// CreateSession handles POST requests to issue a new conversation session
func (m *Module) CreateSession(c *gin.Context) {
	var req sdk.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	session := m.sessions.Create(req.Source)
	log.Printf("[API]: Issued session %s for source %s", session.ID, session.Source)

	c.JSON(sdk.NewSuccessResponse("Session created successfully", session).AsGinResponse())
}

// Stream handles POST requests carrying a chat message and answers with an event stream
func (m *Module) Stream(c *gin.Context) {
	var req sdk.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err.Error()).AsGinResponse())
		return
	}

	if !m.sessions.Touch(req.ConversationID) {
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "Session not found", nil).AsGinResponse())
		return
	}

	// Shed load instead of queueing
	if m.slots != nil {
		select {
		case m.slots <- struct{}{}:
			defer func() { <-m.slots }()
		default:
			c.JSON(http.StatusServiceUnavailable, sdk.UnavailableResponse{Message: unavailableMessage})
			return
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	w := c.Writer
	emit := func(ev sdk.StreamEvent) error {
		if err := sdk.WriteEvent(w, ev); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	if err := m.responder.Respond(c.Request.Context(), &req, emit); err != nil {
		// Headers are already sent; ending the body early is all that's left
		log.Printf("[API]: Stream for session %s ended early: %v", req.ConversationID, err)
		return
	}

	if err := sdk.WriteDone(w); err == nil {
		w.Flush()
	}
}
