package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/library-assistant/server/internal/agent/model"
	logx "github.com/library-assistant/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Model   model.ChatModelConfig
}

// ChatModels holds one chat model per persona. Book and paper models carry
// their persona's tools; the general model has none.
type ChatModels struct {
	Book      einomodel.BaseChatModel
	Paper     einomodel.BaseChatModel
	General   einomodel.BaseChatModel
	ModelName string
}

// NewChatModels creates the persona chat models on one Gemini client, binds
// the persona tools and wraps each model in the provider retry policy.
func NewChatModels(ctx context.Context, config ChatModelConfig, bookTools, paperTools []*schema.ToolInfo) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	newModel := func(name string, tools []*schema.ToolInfo) (einomodel.BaseChatModel, error) {
		cm, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       config.Model.Model,
			Temperature: &config.Model.Temperature,
			MaxTokens:   &config.Model.MaxTokens,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  genai.Ptr(int32(1024)),
			},
		})
		if err != nil {
			logx.Error().Err(err).Str("persona_model", name).Msg("Error creating chat model")
			return nil, fmt.Errorf("error creating %s model: %w", name, err)
		}
		if len(tools) > 0 {
			if err := cm.BindTools(tools); err != nil {
				logx.Error().Err(err).Str("persona_model", name).Msg("Failed to bind tools")
				return nil, fmt.Errorf("failed to bind tools to %s model: %w", name, err)
			}
			logx.Debug().Str("persona_model", name).Int("tools", len(tools)).Msg("Successfully bound tools")
		}
		return NewRetryingChatModel(cm, config.Model.Model, config.Model.Timeout, config.Model.Retries), nil
	}

	book, err := newModel("book", bookTools)
	if err != nil {
		return nil, err
	}
	paper, err := newModel("paper", paperTools)
	if err != nil {
		return nil, err
	}
	general, err := newModel("general", nil)
	if err != nil {
		return nil, err
	}

	return &ChatModels{
		Book:      book,
		Paper:     paper,
		General:   general,
		ModelName: config.Model.Model,
	}, nil
}
