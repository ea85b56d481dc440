package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethanbaker/api/pkg/api_types"
)

const (
	SessionsPath = "/api/chat/sessions"
	StreamPath   = "/api/chat/stream"
)

// Create a new conversation session
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error) {
	var out ApiResponse[Session]
	if err := c.doJSON(ctx, http.MethodPost, SessionsPath, req, &out); err != nil {
		return nil, err
	}

	// Check for success
	switch out.Status {
	case api_types.StatusFail:
		return nil, fmt.Errorf("failed to create session: %s", out.Message)
	case api_types.StatusError:
		return nil, fmt.Errorf("error creating session (%s): %v", out.Message, out.Error)
	}

	if out.Data.ID == "" {
		return nil, fmt.Errorf("no id returned")
	}

	return &out.Data, nil
}

// IssueSession creates a session for the given source tag and returns its id
func (c *Client) IssueSession(ctx context.Context, source string) (string, error) {
	sess, err := c.CreateSession(ctx, &CreateSessionRequest{Source: source})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// OpenStream posts a chat message and returns the event stream body. The caller owns
// the returned body and must close it. A 503 is reported as *CapabilityUnavailableError,
// any other non-2xx status as *TransportError.
func (c *Client) OpenStream(ctx context.Context, req *ChatRequest) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, StreamPath, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost + " " + StreamPath, Err: err}
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		defer resp.Body.Close()

		// The notice is optional; a missing or malformed body still yields the 503 kind
		var body UnavailableResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body)
		return nil, &CapabilityUnavailableError{Message: body.Message}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Op: http.MethodPost + " " + StreamPath, StatusCode: resp.StatusCode, Body: string(b)}
	}

	return resp.Body, nil
}
