package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/library-assistant/server/internal/agent/graph/conversations"
	"github.com/library-assistant/server/internal/agent/graph/parsers"
	"github.com/library-assistant/server/internal/agent/graph/prompts"
	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/agent/persona"
	errx "github.com/library-assistant/server/internal/core/error"
	"github.com/library-assistant/server/internal/library"
	logx "github.com/library-assistant/server/pkg/logger"
)

// NewInputConverterPreHandler creates the pre-handler for InputConverter node.
// It resets per-request counters and picks the persona for the utterance.
func NewInputConverterPreHandler() func(context.Context, model.ChatInput, *model.AppState) (model.ChatInput, error) {
	return func(ctx context.Context, in model.ChatInput, s *model.AppState) (model.ChatInput, error) {
		if s.ConversationID == "" {
			s.ConversationID = in.ConversationID
		}
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.Usage = model.Usage{}
		s.Prompt = in.Prompt
		s.Persona = persona.Select(in.Prompt)

		logx.Debug().
			Str("conversation_id", s.ConversationID).
			Str("persona", string(s.Persona)).
			Msg("Persona selected")
		return in, nil
	}
}

// NewInputConverterNode creates the InputConverter node: persona system
// prompt plus conversation replay plus the user prompt.
func NewInputConverterNode(mm *conversations.MessagesManager, reg *library.Registry) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.ChatInput) ([]*schema.Message, error) {
		if strings.TrimSpace(input.Prompt) == "" {
			return nil, errx.BadRequest(errors.New("prompt is required"))
		}

		var id persona.ID
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			id = state.Persona
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderPersonaSystem(ctx, id, reg, input.SystemPrompt)
		if err != nil {
			return nil, fmt.Errorf("render persona system prompt: %w", err)
		}
		systemPrompt = prompts.AppendClientContext(systemPrompt, input.Context)

		messages, err := mm.BuildContext(ctx, input.ConversationID, systemPrompt, input.Prompt)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}
		return messages, nil
	})
}

// NewPersonaRouterCondition routes the prepared messages to the chat model of
// the selected persona.
func NewPersonaRouterCondition() func(context.Context, []*schema.Message) (string, error) {
	return func(ctx context.Context, _ []*schema.Message) (string, error) {
		var id persona.ID
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			id = state.Persona
			return nil
		}); err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		next := ModelNodeFor(id)
		logx.Debug().Str("persona", string(id)).Str("node", next).Msg("Routing to persona model")
		return next, nil
	}
}

// NewChatModelPreHandler creates the pre-handler shared by the persona model
// nodes. Tool results are folded into the running history; once the tool
// budget is spent the model is told to answer with what it has.
func NewChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Some providers drop tool_call_id on tool results
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := msg.ToolCalls[0].ID; strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			state.History = append(state.History, &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Reply now with the JSON envelope using the information you already have. "+
						"Use placeholder values where a lookup could not be completed.",
					maxToolCalls,
				),
			})
		}

		logx.Debug().Str("persona", string(state.Persona)).Msg("AI thinking...")
		return state.History, nil
	}
}

// NewChatModelPostHandler accumulates usage, normalizes tool call ids and
// records the model turn in the running history.
func NewChatModelPostHandler(modelName, node string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("%s returned no message", node)
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			u := out.ResponseMeta.Usage
			cost := state.Usage.Add(u, model.ResolvePricing(modelName))
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("node", node).
				Str("model", modelName).
				Int("prompt_tokens", u.PromptTokens).
				Int("completion_tokens", u.CompletionTokens).
				Int("total_tokens", u.TotalTokens).
				Float64("cost_usd", cost).
				Float64("total_cost_usd", state.Usage.CostUSD).
				Msg("LLM usage")
		}

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Msg("AI response ready")
		}
		return out, nil
	}
}

// NewToolExecutorCondition routes a model turn either to its tools node or,
// when there is nothing left to call, to the envelope parser.
func NewToolExecutorCondition(toolsNode string) func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("Tool limit reached previously - routing to parser")
			return NodeEnvelopeParser, nil
		}
		if input != nil && len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Str("node", toolsNode).Msg("Routing to tools")
			return toolsNode, nil
		}
		return NodeEnvelopeParser, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds against the budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("conversation_id", state.ConversationID).
			Msg("Tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// NewEnvelopeParserNode validates the final model reply against the envelope
// contract. The user turn and the reply are stored together, and only once
// the reply validates.
func NewEnvelopeParserNode(reg *library.Registry, mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.ChatOutput, error) {
		var (
			convID string
			prompt string
			id     persona.ID
			usage  model.Usage
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			convID = state.ConversationID
			prompt = state.Prompt
			id = state.Persona
			usage = state.Usage
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if resp == nil {
			return nil, errx.Violation("", "empty model reply")
		}

		env, err := parsers.ParseEnvelope(reg, resp.Content)
		if err != nil {
			logx.Error().Err(err).Str("persona", string(id)).Msg("Error parsing envelope")
			return nil, err
		}

		if err := mm.SaveResponse(ctx, convID, prompt, env.Content); err != nil {
			logx.Error().Str("conversation_id", convID).Err(err).Msg("Error saving conversation turn")
		}

		return &model.ChatOutput{
			Content: env.Content,
			Action:  env.Action,
			Usage:   &usage,
			Persona: id,
		}, nil
	})
}
