package nodes

import (
	"context"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/agent/persona"
	errx "github.com/library-assistant/server/internal/core/error"
)

type flakyModel struct {
	errs  []error
	calls int
	block bool
}

func (m *flakyModel) Generate(ctx context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	i := m.calls
	m.calls++
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *flakyModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("unsupported")
}

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func TestRetryingChatModelRecoversFromTransientError(t *testing.T) {
	inner := &flakyModel{errs: []error{netTimeout{}}}
	m := NewRetryingChatModel(inner, "m", time.Second, 2)

	out, err := m.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingChatModelDoesNotRetryPermanentError(t *testing.T) {
	inner := &flakyModel{errs: []error{errors.New("401 unauthorized")}}
	m := NewRetryingChatModel(inner, "m", time.Second, 3)

	_, err := m.Generate(context.Background(), nil)
	var pe *errx.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "m", pe.Model)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingChatModelAttemptTimeout(t *testing.T) {
	inner := &flakyModel{block: true}
	m := NewRetryingChatModel(inner, "m", 10*time.Millisecond, 1)

	_, err := m.Generate(context.Background(), nil)
	var pe *errx.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryingChatModelStopsWhenCallerCancels(t *testing.T) {
	inner := &flakyModel{block: true}
	m := NewRetryingChatModel(inner, "m", time.Second, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Generate(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestToolLimitHelpers(t *testing.T) {
	s := &model.AppState{}
	assert.False(t, checkAndMarkToolLimit(s, 2))
	assert.False(t, incrementToolCallAndCheck(s, 2))
	assert.False(t, incrementToolCallAndCheck(s, 2))
	assert.True(t, checkAndMarkToolLimit(s, 2))
	assert.False(t, checkAndMarkToolLimit(s, 2), "marked only once")
	assert.True(t, incrementToolCallAndCheck(s, 2))
	assert.Equal(t, DefaultMaxToolCalls, normalizeMaxToolCalls(0))
}

func TestModelNodeFor(t *testing.T) {
	assert.Equal(t, NodeBookModel, ModelNodeFor(persona.BookLibrarian))
	assert.Equal(t, NodePaperModel, ModelNodeFor(persona.PaperLibrarian))
	assert.Equal(t, NodeGeneralModel, ModelNodeFor(persona.GeneralAssistant))
	assert.Equal(t, NodeGeneralModel, ModelNodeFor(""))
}

func TestInputConverterPreHandlerResetsState(t *testing.T) {
	s := &model.AppState{ToolCallCount: 3, ToolCallLimitReached: true, ToolCallIDSeq: 4, Usage: model.Usage{TotalTokens: 9}}
	_, err := NewInputConverterPreHandler()(context.Background(), model.ChatInput{Prompt: "add the book Dune", ConversationID: "c1"}, s)
	require.NoError(t, err)
	assert.Equal(t, "c1", s.ConversationID)
	assert.Equal(t, persona.BookLibrarian, s.Persona)
	assert.Equal(t, "add the book Dune", s.Prompt)
	assert.Zero(t, s.ToolCallCount)
	assert.False(t, s.ToolCallLimitReached)
	assert.Zero(t, s.Usage)
}

func TestChatModelPostHandler(t *testing.T) {
	s := &model.AppState{}
	out := &schema.Message{
		Role:         schema.Assistant,
		ToolCalls:    []schema.ToolCall{{Function: schema.FunctionCall{Name: "a"}}, {ID: "keep", Function: schema.FunctionCall{Name: "b"}}},
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 0, TotalTokens: 1_000_000}},
	}
	got, err := NewChatModelPostHandler("gemini-2.5-flash", NodeBookModel)(context.Background(), out, s)
	require.NoError(t, err)
	assert.Equal(t, "call_1", got.ToolCalls[0].ID)
	assert.Equal(t, "keep", got.ToolCalls[1].ID)
	assert.InDelta(t, 0.30, s.Usage.CostUSD, 1e-9)
	assert.Len(t, s.History, 1)

	_, err = NewChatModelPostHandler("m", NodeBookModel)(context.Background(), nil, s)
	require.Error(t, err)
}

func TestChatModelPreHandlerFillsToolCallID(t *testing.T) {
	s := &model.AppState{History: []*schema.Message{{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "call_7"}}}}}
	in := []*schema.Message{{Role: schema.Tool, Content: "{}"}}

	msgs, err := NewChatModelPreHandler(5)(context.Background(), in, s)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "call_7", msgs[1].ToolCallID)
}
