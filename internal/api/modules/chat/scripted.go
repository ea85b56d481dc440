package chat

import (
	"context"
	"strings"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/google/uuid"
)

const panelCommand = "/panel"

// ScriptedResponder answers deterministically without a model. New conversations get a
// coach handoff, messages are echoed back word by word, and "/panel" produces a dialogue.
type ScriptedResponder struct {
	Delay    time.Duration // Pause between chunks
	AudioURL string        // Optional audio reference attached to handoffs and dialogue lines
}

func (s ScriptedResponder) Respond(ctx context.Context, req *sdk.ChatRequest, emit EmitFunc) error {
	if len(req.ConversationHistory) == 0 {
		err := emit(sdk.StreamEvent{
			Type:     sdk.EventHandoff,
			Speaker:  sdk.SpeakerCoach,
			Content:  "Welcome! I'm your coach.",
			AudioURL: s.AudioURL,
		})
		if err != nil {
			return err
		}
	}

	if topic, ok := strings.CutPrefix(req.Message, panelCommand); ok {
		return s.panel(ctx, strings.TrimSpace(topic), emit)
	}

	if err := s.chunk(ctx, emit, sdk.SpeakerCoach, "You said:"); err != nil {
		return err
	}
	for _, word := range strings.Fields(req.Message) {
		if err := s.chunk(ctx, emit, sdk.SpeakerCoach, " "+word); err != nil {
			return err
		}
	}

	return nil
}

// panel streams a short introduction followed by one dialogue batch
func (s ScriptedResponder) panel(ctx context.Context, topic string, emit EmitFunc) error {
	if topic == "" {
		topic = "your goals"
	}

	if err := s.chunk(ctx, emit, sdk.SpeakerCoach, "Let me bring in the panel."); err != nil {
		return err
	}

	return emit(sdk.StreamEvent{
		Type:    sdk.EventDialogue,
		GroupID: uuid.NewString(),
		Dialogue: []sdk.DialogueLine{
			{Speaker: sdk.SpeakerMentor, Text: "Start small with " + topic + ".", AudioURL: s.AudioURL},
			{Speaker: sdk.SpeakerAnalyst, Text: "Track " + topic + " for a week before changing anything.", AudioURL: s.AudioURL},
			{Speaker: sdk.SpeakerCoach, Text: "Pick one thing to try tomorrow.", AudioURL: s.AudioURL},
		},
	})
}

// chunk waits for the configured delay and emits one chunk
func (s ScriptedResponder) chunk(ctx context.Context, emit EmitFunc, speaker sdk.Speaker, content string) error {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Delay):
		}
	}

	return emit(sdk.StreamEvent{Type: sdk.EventChunk, Speaker: speaker, Content: content})
}
