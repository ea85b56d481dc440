package chat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIResponder(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Try ", "", "a walk."} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test-model\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	r := NewOpenAIResponder("test-model", "Be brief.", option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))

	events := collect(t, r, &sdk.ChatRequest{
		Message: "I'm tired",
		ConversationHistory: []sdk.HistoryEntry{
			{Speaker: sdk.SpeakerCoach, Content: "Welcome!"},
			{Speaker: sdk.SpeakerUser, Content: "hi"},
			{Speaker: sdk.SpeakerSystem, Content: "Connection lost."},
		},
	})

	require.Len(t, events, 2)
	assert.Equal(t, "Try ", events[0].Content)
	assert.Equal(t, "a walk.", events[1].Content)
	assert.Equal(t, sdk.SpeakerCoach, events[0].Speaker)

	assert.Equal(t, "test-model", received.Model)
	require.Len(t, received.Messages, 4)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "Be brief.", received.Messages[0].Content)
	assert.Equal(t, "assistant", received.Messages[1].Role)
	assert.Equal(t, "user", received.Messages[2].Role)
	assert.Equal(t, "I'm tired", received.Messages[3].Content)
}
