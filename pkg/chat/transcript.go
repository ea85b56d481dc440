package chat

import (
	"slices"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/google/uuid"
)

// Message is a single transcript entry
type Message struct {
	ID        string      `json:"id"`                  // Stable for the lifetime of a streaming entry
	Speaker   sdk.Speaker `json:"speaker"`             // Human user or persona
	Text      string      `json:"text"`                // Accumulated content
	CreatedAt time.Time   `json:"created_at"`          // Creation time on this client
	AudioURL  string      `json:"audio_url,omitempty"` // Synthesized speech reference, never fetched here
	GroupID   string      `json:"group_id,omitempty"`  // Set on lines of a grouped dialogue
	Streaming bool        `json:"streaming"`           // True while more chunks are expected
}

// NewMessage creates a finalized message with a generated id
func NewMessage(speaker sdk.Speaker, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// transcript is the ordered message list of one conversation. Callers serialize access.
type transcript struct {
	messages []Message
}

func (t *transcript) append(m Message) {
	t.messages = append(t.messages, m)
}

// find returns the message with the given id, searching from the newest entry
func (t *transcript) find(id string) *Message {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == id {
			return &t.messages[i]
		}
	}
	return nil
}

func (t *transcript) snapshot() []Message {
	return slices.Clone(t.messages)
}

func (t *transcript) reset() {
	t.messages = nil
}

// history serializes finalized entries as conversational context
func (t *transcript) history() []sdk.HistoryEntry {
	entries := make([]sdk.HistoryEntry, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Streaming {
			continue
		}
		entries = append(entries, sdk.HistoryEntry{Speaker: m.Speaker, Content: m.Text})
	}
	return entries
}
