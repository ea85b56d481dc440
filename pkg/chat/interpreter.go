package chat

import (
	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/google/uuid"
)

// interpreter applies decoded events of a single stream run to a transcript. It tracks
// the run's open streaming message; only chunk events edit an entry in place.
type interpreter struct {
	streamingID string
}

// apply mutates the transcript for one event and reports whether anything changed
func (in *interpreter) apply(t *transcript, ev sdk.StreamEvent) bool {
	switch ev.Type {
	case sdk.EventChunk:
		msg := in.streaming(t)
		msg.Text += ev.Content
		msg.Speaker = ev.Speaker.Normalize()
		return true

	case sdk.EventHandoff:
		m := NewMessage(ev.Speaker.Normalize(), ev.Content)
		m.AudioURL = ev.AudioURL
		t.append(m)
		return true

	case sdk.EventDialogue:
		// A dialogue closes the current accumulation; later chunks open a new message
		in.finish(t)

		batchID := ev.GroupID
		if batchID == "" {
			batchID = uuid.NewString()
		}

		for _, line := range ev.Dialogue {
			m := NewMessage(line.Speaker.Normalize(), line.Text)
			m.AudioURL = line.AudioURL
			m.GroupID = line.GroupID
			if m.GroupID == "" {
				m.GroupID = batchID
			}
			t.append(m)
		}
		return true

	default:
		return false
	}
}

// streaming returns the run's open streaming message, appending a fresh one if needed
func (in *interpreter) streaming(t *transcript) *Message {
	if in.streamingID != "" {
		if msg := t.find(in.streamingID); msg != nil {
			return msg
		}
	}

	m := NewMessage(sdk.SpeakerAssistant, "")
	m.Streaming = true
	t.append(m)
	in.streamingID = m.ID

	return t.find(m.ID)
}

// finish clears the streaming flag on the open message, if any. It is safe to call twice.
func (in *interpreter) finish(t *transcript) bool {
	if in.streamingID == "" {
		return false
	}

	id := in.streamingID
	in.streamingID = ""

	if msg := t.find(id); msg != nil && msg.Streaming {
		msg.Streaming = false
		return true
	}
	return false
}
