package model

import (
	"github.com/cloudwego/eino/schema"

	"github.com/library-assistant/server/internal/agent/persona"
	"github.com/library-assistant/server/internal/library"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	ConversationID       string
	Prompt               string
	Persona              persona.ID
	History              []*schema.Message // mutated only inside Eino state handlers
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // synthesizes tool_call_id when the provider omits it

	Usage Usage // accumulated across every model call of this request
}

// ChatInput is one chat submission.
type ChatInput struct {
	Prompt         string   `json:"prompt"`
	Temperature    *float32 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	// Context is the client's current state (compact JSON), shown to the
	// persona so it can address existing ids.
	Context string `json:"context,omitempty"`
}

// ChatOutput is the validated reply of a persona.
type ChatOutput struct {
	Content string          `json:"content"`
	Action  *library.Action `json:"object,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
	Persona persona.ID      `json:"-"`
}

// Usage is the token and cost total of one request.
type Usage struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	CostUSD          float64 `json:"costUsd"`
}
