package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/library-assistant/server/internal/agent/model"
	errx "github.com/library-assistant/server/internal/core/error"
	"github.com/library-assistant/server/internal/library"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	out  *model.ChatOutput
	err  error
	seen model.ChatInput
}

func (f *fakeRunner) Invoke(_ context.Context, in model.ChatInput) (*model.ChatOutput, error) {
	f.seen = in
	return f.out, f.err
}

func addBookOutput() *model.ChatOutput {
	return &model.ChatOutput{
		Content: "Added 1984.",
		Action: &library.Action{
			Type:      library.ActionType,
			StateKey:  library.StateBooks,
			SetterKey: library.SetAddBook,
			Args:      []json.RawMessage{json.RawMessage(`{"title":"1984"}`)},
		},
		Usage: &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	runner := &fakeRunner{out: addBookOutput()}
	h := New(runner).Handler()

	rec := post(t, h, "/chat", `{"prompt":"Please add the book 1984 to my library","temperature":0.3,"maxTokens":100,"conversationId":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Added 1984.", body["content"])
	object := body["object"].(map[string]any)
	assert.Equal(t, "addBook", object["setterKey"])
	assert.Contains(t, body, "usage")
	assert.NotContains(t, body, "persona")

	assert.Equal(t, "c1", runner.seen.ConversationID)
	require.NotNil(t, runner.seen.Temperature)
	assert.InDelta(t, 0.3, *runner.seen.Temperature, 1e-6)
	assert.Equal(t, 100, *runner.seen.MaxTokens)
}

func TestChatPassesClientContext(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"object", `{"prompt":"rate it","context":{ "books": [ {"id":"2","title":"Clean Code"} ] }}`, `{"books":[{"id":"2","title":"Clean Code"}]}`},
		{"string", `{"prompt":"rate it","context":"books: 2 Clean Code"}`, "books: 2 Clean Code"},
		{"null", `{"prompt":"rate it","context":null}`, ""},
		{"absent", `{"prompt":"rate it"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{out: &model.ChatOutput{Content: "ok"}}
			rec := post(t, New(runner).Handler(), "/chat", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, runner.seen.Context)
		})
	}
}

func TestChatWithoutActionOmitsObject(t *testing.T) {
	h := New(&fakeRunner{out: &model.ChatOutput{Content: "Try Dune."}}).Handler()

	rec := post(t, h, "/chat", `{"prompt":"What books do you recommend?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"object"`)
}

func TestChatBadRequests(t *testing.T) {
	h := New(&fakeRunner{}).Handler()
	for name, body := range map[string]string{
		"malformed":      `{"prompt":`,
		"empty prompt":   `{"prompt":"   "}`,
		"missing prompt": `{}`,
		"bad max tokens": `{"prompt":"hi","maxTokens":0}`,
		"wrong type":     `{"prompt":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, "/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+errx.BadRequestMessage+`"}`, rec.Body.String())
		})
	}
}

func TestChatFailuresUseSafeMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"schema violation", errx.Violation("action.setterKey", "unknown setter"), errx.SchemaViolationMessage},
		{"provider", &errx.ProviderError{Model: "m", Err: errors.New("quota with secret detail")}, errx.ProviderErrorMessage},
		{"other", errors.New("boom"), errx.SystemErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeRunner{err: tt.err}).Handler()
			rec := post(t, h, "/chat", `{"prompt":"hi"}`)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.want+`"}`, rec.Body.String())
		})
	}
}

func readEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChatStream(t *testing.T) {
	h := New(&fakeRunner{out: addBookOutput()}).Handler()

	rec := post(t, h, "/chat/stream", `{"prompt":"add 1984"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, map[string]any{"type": EventStageUpdate, "status": StageBegin, "message": "Generating response..."}, events[0])
	assert.Equal(t, map[string]any{"type": EventStageUpdate, "status": StageComplete, "message": "Response generated"}, events[2])

	// the result frame is the chat output itself
	result := events[1]
	assert.ElementsMatch(t, []string{"content", "object", "usage"}, keys(result))
	assert.Equal(t, "Added 1984.", result["content"])
	assert.Equal(t, "addBook", result["object"].(map[string]any)["setterKey"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestChatStreamErrorEvent(t *testing.T) {
	h := New(&fakeRunner{err: errx.Violation("", "not json")}).Handler()

	rec := post(t, h, "/chat/stream", `{"prompt":"add 1984"}`)
	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, StageBegin, events[0]["status"])
	assert.Equal(t, EventError, events[1]["type"])
	assert.Equal(t, errx.SchemaViolationMessage, events[1]["error"])
}

func TestChatStreamBadRequestIsPlainJSON(t *testing.T) {
	h := New(&fakeRunner{}).Handler()
	rec := post(t, h, "/chat/stream", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, readEvents(t, rec.Body.String()))
}

type cancellingRunner struct{ cancel context.CancelFunc }

func (c *cancellingRunner) Invoke(ctx context.Context, _ model.ChatInput) (*model.ChatOutput, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestChatStreamClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(&cancellingRunner{cancel: cancel}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(`{"prompt":"hi"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, StageBegin, events[0]["status"])
}

type memoryHistory struct {
	cleared []string
	err     error
}

func (m *memoryHistory) ClearHistory(_ context.Context, id string) error {
	m.cleared = append(m.cleared, id)
	return m.err
}

func deleteConversation(h http.Handler, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/chat/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClearConversation(t *testing.T) {
	history := &memoryHistory{}
	h := New(&fakeRunner{}, WithHistory(history)).Handler()

	rec := deleteConversation(h, "c1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, []string{"c1"}, history.cleared)
}

func TestClearConversationFailures(t *testing.T) {
	rec := deleteConversation(New(&fakeRunner{}).Handler(), "c1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"conversation history is disabled"}`, rec.Body.String())

	down := &memoryHistory{err: errx.WrapRedis(errors.New("connection refused"))}
	rec = deleteConversation(New(&fakeRunner{}, WithHistory(down)).Handler(), "c1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"`+errx.RedisErrorMessage+`"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	h := New(&fakeRunner{}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&fakeRunner{}).Serve(ctx, ln, time.Second) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
