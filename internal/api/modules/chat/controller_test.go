package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/ethanbaker/coach/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(cfg *utils.Config, m *Module) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), cfg, m)
	return engine
}

func postJSON(t *testing.T, engine http.Handler, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// blockingResponder holds each stream open until released
type blockingResponder struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingResponder) Respond(ctx context.Context, req *sdk.ChatRequest, emit EmitFunc) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return emit(sdk.StreamEvent{Type: sdk.EventChunk, Content: "done"})
}

func TestCreateSession(t *testing.T) {
	m := NewModule(NewRegistry(), ScriptedResponder{}, 0)
	engine := newTestEngine(utils.NewConfig(nil), m)

	t.Run("issues a session", func(t *testing.T) {
		w := postJSON(t, engine, "/api/chat/sessions", sdk.CreateSessionRequest{Source: "command-center"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var res sdk.ApiResponse[sdk.Session]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Data.ID)
		assert.Equal(t, "command-center", res.Data.Source)
		assert.True(t, m.Sessions().Touch(res.Data.ID))
	})

	t.Run("requires a source", func(t *testing.T) {
		w := postJSON(t, engine, "/api/chat/sessions", map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStream(t *testing.T) {
	registry := NewRegistry()
	session := registry.Create("command-center")
	engine := newTestEngine(utils.NewConfig(nil), NewModule(registry, ScriptedResponder{}, 4))

	t.Run("streams frames", func(t *testing.T) {
		w := postJSON(t, engine, "/api/chat/stream", sdk.ChatRequest{Message: "hi coach", ConversationID: session.ID}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

		events, err := sdk.NewDecoder(0).Feed([]byte(body))
		require.NoError(t, err)
		require.Len(t, events, 4)
		assert.Equal(t, sdk.EventHandoff, events[0].Type)
		assert.Equal(t, " coach", events[3].Content)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := postJSON(t, engine, "/api/chat/stream", sdk.ChatRequest{Message: "hi", ConversationID: "missing"}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		w := postJSON(t, engine, "/api/chat/stream", map[string]string{"conversationId": session.ID}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStreamLimit(t *testing.T) {
	registry := NewRegistry()
	session := registry.Create("command-center")
	responder := blockingResponder{started: make(chan struct{}, 1), release: make(chan struct{})}

	srv := httptest.NewServer(newTestEngine(utils.NewConfig(nil), NewModule(registry, responder, 1)))
	defer srv.Close()

	body, err := json.Marshal(sdk.ChatRequest{Message: "hi", ConversationID: session.ID})
	require.NoError(t, err)

	// Occupy the only slot
	first := make(chan *http.Response, 1)
	go func() {
		res, err := http.Post(srv.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
		if err == nil {
			first <- res
		}
		close(first)
	}()

	select {
	case <-responder.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first stream never started")
	}

	res, err := http.Post(srv.URL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	var unavailable sdk.UnavailableResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&unavailable))
	assert.Equal(t, unavailableMessage, unavailable.Message)

	close(responder.release)
	firstRes, ok := <-first
	require.True(t, ok)
	defer firstRes.Body.Close()

	b, err := io.ReadAll(firstRes.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"content":"done"`)
}

func TestRoutesRequireAPIKey(t *testing.T) {
	cfg := utils.NewConfig(map[string]string{"API_KEY": "secret"})
	engine := newTestEngine(cfg, NewModule(NewRegistry(), ScriptedResponder{}, 0))

	w := postJSON(t, engine, "/api/chat/sessions", sdk.CreateSessionRequest{Source: "command-center"}, nil)
	assert.NotEqual(t, http.StatusOK, w.Code)

	w = postJSON(t, engine, "/api/chat/sessions", sdk.CreateSessionRequest{Source: "command-center"}, http.Header{"X-Api-Key": {"secret"}})
	assert.Equal(t, http.StatusOK, w.Code)
}
