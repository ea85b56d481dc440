package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethanbaker/api/pkg/api_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestClient_CreateSession(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody CreateSessionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SessionsPath, r.URL.Path)
		gotKey = r.Header.Get("X-API-KEY")
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(NewSuccessResponse("Session created successfully", Session{ID: "sess-1", Source: gotBody.Source}))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})))

	id, err := client.IssueSession(context.Background(), "command-center")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", id)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "command-center", gotBody.Source)
}

func TestClient_CreateSessionFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "error envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ApiResponse[Session]{Status: api_types.StatusError, Message: "nope"})
			},
		},
		{
			name: "missing id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(NewSuccessResponse("ok", Session{}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "").IssueSession(context.Background(), "src")
			assert.Error(t, err)
		})
	}
}

func TestClient_OpenStream(t *testing.T) {
	var got ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StreamPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		WriteEvent(w, StreamEvent{Type: EventChunk, Speaker: SpeakerCoach, Content: "hi"})
		WriteDone(w)
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL, "k").OpenStream(context.Background(), &ChatRequest{
		Message:             "hello",
		ConversationID:      "sess-1",
		ConversationHistory: []HistoryEntry{{Speaker: SpeakerCoach, Content: "welcome"}},
		Metadata: ChatMetadata{
			Source:              "organization-chat",
			AttachedResourceIDs: []string{"doc-1"},
			ContextData:         map[string]any{"organizationId": "org-9"},
		},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	d := NewDecoder(0)
	events, err := d.Feed(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Content)

	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, "sess-1", got.ConversationID)
	require.Len(t, got.ConversationHistory, 1)
	assert.Equal(t, "organization-chat", got.Metadata.Source)
	assert.Equal(t, []string{"doc-1"}, got.Metadata.AttachedResourceIDs)
	assert.Equal(t, "org-9", got.Metadata.ContextData["organizationId"])
}

func TestClient_OpenStreamErrors(t *testing.T) {
	t.Run("503 carries the server notice", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message":"try later"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "").OpenStream(context.Background(), &ChatRequest{Message: "x"})

		var unavailable *CapabilityUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, "try later", unavailable.Message)
	})

	t.Run("503 without a body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "").OpenStream(context.Background(), &ChatRequest{Message: "x"})

		var unavailable *CapabilityUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Empty(t, unavailable.Message)
	})

	t.Run("other statuses are transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "").OpenStream(context.Background(), &ChatRequest{Message: "x"})

		var transport *TransportError
		require.True(t, errors.As(err, &transport))
		assert.Equal(t, http.StatusBadGateway, transport.StatusCode)
		assert.Contains(t, transport.Body, "bad gateway")
	})

	t.Run("network faults are transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, "").OpenStream(context.Background(), &ChatRequest{Message: "x"})

		var transport *TransportError
		require.True(t, errors.As(err, &transport))
		assert.Zero(t, transport.StatusCode)
		assert.Error(t, transport.Unwrap())
	})
}
