package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/library-assistant/server/internal/agent/model"
)

// MessagesManager builds persona context from stored history. A manager
// without a repository is stateless: nothing is loaded or saved.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

func (cm *MessagesManager) enabled(conversationID string) bool {
	return cm != nil && cm.conversationRepo != nil && conversationID != ""
}

// BuildContext returns system prompt, the last maxTurns exchanges and the new
// user message. It does not write; see SaveResponse.
func (cm *MessagesManager) BuildContext(ctx context.Context, conversationID, systemPrompt, prompt string) ([]*schema.Message, error) {
	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}

	if cm.enabled(conversationID) {
		history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		// a turn is one user message plus its reply
		for _, m := range trimTail(history.Messages, cm.maxTurns*2) {
			// only plain turns are replayed; tool traffic stays within its request
			if m == nil || m.Content == "" || (m.Role != schema.User && m.Role != schema.Assistant) {
				continue
			}
			messages = append(messages, m)
		}
	}

	return append(messages, schema.UserMessage(prompt)), nil
}

// SaveResponse records a completed exchange: the user prompt followed by the
// validated reply. Failed requests leave no trace in the history.
func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID, prompt, content string) error {
	if !cm.enabled(conversationID) {
		return nil
	}
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(prompt)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(content, nil))
}

func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxMessages:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
