package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeIssuer hands out numbered session ids, or fails while err is set
type fakeIssuer struct {
	mu      sync.Mutex
	calls   int
	sources []string
	err     error
}

func (f *fakeIssuer) IssueSession(ctx context.Context, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.sources = append(f.sources, source)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("session-%d", f.calls), nil
}

func (f *fakeIssuer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeIssuer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeOpener serves every stream through a pipe whose writer is handed to the test
type fakeOpener struct {
	mu       sync.Mutex
	requests []*sdk.ChatRequest
	err      error
	streams  chan *io.PipeWriter
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{streams: make(chan *io.PipeWriter, 8)}
}

func (f *fakeOpener) OpenStream(ctx context.Context, req *sdk.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	r, w := io.Pipe()
	f.streams <- w
	return r, nil
}

func (f *fakeOpener) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeOpener) request(t *testing.T, i int) *sdk.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.requests), i, "stream %d was never opened", i)
	return f.requests[i]
}

// next waits for the writer of the next opened stream
func (f *fakeOpener) next(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case w := <-f.streams:
		return w
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a stream to open")
		return nil
	}
}

// staticOpener serves a fixed body for every request
type staticOpener struct {
	body string
}

func (s staticOpener) OpenStream(ctx context.Context, req *sdk.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewBufferString(s.body)), nil
}

// noticeRecorder collects notices
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeRecorder) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeRecorder) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// frame encodes an event the way the backend does
func frame(t *testing.T, ev sdk.StreamEvent) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, sdk.WriteEvent(&buf, ev))
	return buf.String()
}

func chunk(t *testing.T, content string) string {
	return frame(t, sdk.StreamEvent{Type: sdk.EventChunk, Content: content})
}

// write pushes raw bytes into a stream, failing the test if the run stopped reading
func write(t *testing.T, w *io.PipeWriter, s string) {
	t.Helper()
	_, err := io.WriteString(w, s)
	require.NoError(t, err)
}

// waitFor polls the conversation until cond holds for its transcript
func waitFor(t *testing.T, c *Conversation, cond func([]Message) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(c.Transcript())
	}, waitTimeout, 5*time.Millisecond)
}

func wait(t *testing.T, run *Run) RunResult {
	t.Helper()
	require.NotNil(t, run)
	select {
	case <-run.Done():
		return run.Wait()
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for run to finish")
		return RunResult{}
	}
}

func texts(messages []Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = string(m.Speaker) + ":" + m.Text
	}
	return out
}
