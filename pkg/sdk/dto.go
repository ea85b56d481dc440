package sdk

import (
	"encoding/json"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a format suitable for JSON responses
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Speakers */

// Speaker is a named role in the conversation. The backend may send persona names beyond the
// ones below.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerCoach     Speaker = "coach"
	SpeakerMentor    Speaker = "mentor"
	SpeakerAnalyst   Speaker = "analyst"
	SpeakerSystem    Speaker = "system"
)

// Normalize defaults an empty speaker to the generic assistant persona. Persona names the
// backend sends are kept as they are.
func (s Speaker) Normalize() Speaker {
	if s == "" {
		return SpeakerAssistant
	}
	return s
}

/** Session issuance */

// CreateSessionRequest represents the request body for issuing a new conversation session
type CreateSessionRequest struct {
	Source string `json:"source" binding:"required"` // Context/source tag of the calling surface
}

// Session represents an issued conversation session
type Session struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

/** Streaming chat */

// HistoryEntry is one transcript line sent as conversational context
type HistoryEntry struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// ChatMetadata describes where a message was sent from
type ChatMetadata struct {
	Source              string         `json:"source"`
	AttachedResourceIDs []string       `json:"attachedResourceIds,omitempty"`
	ContextData         map[string]any `json:"contextData,omitempty"`
}

// ChatRequest is the body of the streaming chat POST
type ChatRequest struct {
	Message             string         `json:"message" binding:"required"`
	ConversationID      string         `json:"conversationId" binding:"required"`
	ConversationHistory []HistoryEntry `json:"conversationHistory"`
	Metadata            ChatMetadata   `json:"metadata"`
}

// UnavailableResponse is the body carried by a 503 from the stream endpoint
type UnavailableResponse struct {
	Message string `json:"message,omitempty"`
}

// EventType tags a decoded stream frame
type EventType string

const (
	EventChunk    EventType = "chunk"    // Incremental text for the open streaming message
	EventHandoff  EventType = "handoff"  // A complete message delivered atomically
	EventDialogue EventType = "dialogue" // A batch of lines from several speakers
)

// Valid reports whether the event type is one the interpreter understands
func (t EventType) Valid() bool {
	switch t {
	case EventChunk, EventHandoff, EventDialogue:
		return true
	default:
		return false
	}
}

// DialogueLine is a single speaker line inside a dialogue frame
type DialogueLine struct {
	Speaker  Speaker `json:"speaker"`
	Text     string  `json:"text"`
	AudioURL string  `json:"audioUrl,omitempty"`
	GroupID  string  `json:"groupId,omitempty"`
}

// StreamEvent is the JSON payload of one `data: ` frame
type StreamEvent struct {
	Type     EventType      `json:"type"`
	Speaker  Speaker        `json:"speaker,omitempty"`
	Content  string         `json:"content,omitempty"`
	AudioURL string         `json:"audioUrl,omitempty"`
	GroupID  string         `json:"groupId,omitempty"`
	Dialogue []DialogueLine `json:"dialogue,omitempty"`
}
