package chat

import (
	"context"
	"fmt"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const defaultInstructions = "You are a supportive learning coach. Keep answers short and practical."

// OpenAIResponder streams completion deltas from an OpenAI chat model as chunk events
type OpenAIResponder struct {
	client       openai.Client
	model        string
	instructions string
}

// NewOpenAIResponder creates a responder for the given model. An empty instructions
// string uses a default coaching prompt.
func NewOpenAIResponder(model, instructions string, opts ...option.RequestOption) *OpenAIResponder {
	if instructions == "" {
		instructions = defaultInstructions
	}

	return &OpenAIResponder{
		client:       openai.NewClient(opts...),
		model:        model,
		instructions: instructions,
	}
}

func (o *OpenAIResponder) Respond(ctx context.Context, req *sdk.ChatRequest, emit EmitFunc) error {
	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: o.messages(req),
	})
	defer stream.Close()

	for stream.Next() {
		for _, choice := range stream.Current().Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(sdk.StreamEvent{Type: sdk.EventChunk, Speaker: sdk.SpeakerCoach, Content: choice.Delta.Content}); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream failed: %w", err)
	}
	return nil
}

// messages converts the conversation history into model input
func (o *OpenAIResponder) messages(req *sdk.ChatRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.ConversationHistory)+2)
	messages = append(messages, openai.SystemMessage(o.instructions))

	for _, entry := range req.ConversationHistory {
		switch entry.Speaker {
		case sdk.SpeakerUser:
			messages = append(messages, openai.UserMessage(entry.Content))
		case sdk.SpeakerSystem:
			// Client-side failure notes are not part of the conversation
		default:
			messages = append(messages, openai.AssistantMessage(entry.Content))
		}
	}

	return append(messages, openai.UserMessage(req.Message))
}
