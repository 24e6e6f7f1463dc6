package graph

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"

	"github.com/library-assistant/server/internal/agent/graph/conversations"
	"github.com/library-assistant/server/internal/agent/graph/nodes"
	"github.com/library-assistant/server/internal/agent/graph/observers"
	"github.com/library-assistant/server/internal/agent/graph/tools"
	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/library"
	logx "github.com/library-assistant/server/pkg/logger"
)

// Runner executes the compiled graph for one chat submission.
type Runner interface {
	Invoke(ctx context.Context, in model.ChatInput) (*model.ChatOutput, error)
}

// Config holds everything needed to compose the full chat graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// persona chat models and the MessagesManager.
type Config struct {
	APIKey           string
	BaseURL          string
	ChatModel        model.ChatModelConfig
	Conversation     model.ConversationConfig
	ConversationRepo model.ConversationRepository // optional
	Registry         *library.Registry
	Papers           tools.PaperLookup
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Registry        *library.Registry
	BookTools       []tool.BaseTool
	PaperTools      []tool.BaseTool
	ToolMaxCalls    int
}

// GraphBuilder handles the construction of the persona chat graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.ChatInput, *model.ChatOutput]
}

type graphRunner struct {
	runnable compose.Runnable[model.ChatInput, *model.ChatOutput]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.ChatInput) (*model.ChatOutput, error) {
	opts := []compose.Option{compose.WithCallbacks(observers.NewAllCallbacks())}

	var modelOpts []einomodel.Option
	if in.Temperature != nil {
		modelOpts = append(modelOpts, einomodel.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		modelOpts = append(modelOpts, einomodel.WithMaxTokens(*in.MaxTokens))
	}
	if len(modelOpts) > 0 {
		opts = append(opts, compose.WithChatModelOption(modelOpts...))
	}

	out, err := r.runnable.Invoke(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned no output")
	}
	return out, nil
}

// BuildChatGraph composes the persona tools, chat models and MessagesManager,
// builds the graph, and returns a Runner.
func BuildChatGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if cfg.Papers == nil {
		return nil, fmt.Errorf("paper lookup is nil")
	}

	bookTools := tools.BookTools()
	paperTools := tools.PaperTools(cfg.Papers)

	bookInfos, err := tools.GetToolInfos(ctx, bookTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get book tool infos")
		return nil, fmt.Errorf("failed to get tool infos: %w", err)
	}
	paperInfos, err := tools.GetToolInfos(ctx, paperTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get paper tool infos")
		return nil, fmt.Errorf("failed to get tool infos: %w", err)
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ChatModel,
	}, bookInfos, paperInfos)
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation),
		Registry:        cfg.Registry,
		BookTools:       bookTools,
		PaperTools:      paperTools,
		ToolMaxCalls:    cfg.Conversation.Tools.MaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Chat graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// NewRunner wraps an already compiled graph.
func NewRunner(runnable compose.Runnable[model.ChatInput, *model.ChatOutput]) Runner {
	return &graphRunner{runnable: runnable}
}

// BuildGraph constructs and returns the compiled persona chat graph:
//
//	START -> InputConverter -> (persona router) -> {Book,Paper,General}Model
//	BookModel  <-> BookTools   -> EnvelopeParser
//	PaperModel <-> PaperTools  -> EnvelopeParser
//	GeneralModel              -> EnvelopeParser -> END
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.ChatInput, *model.ChatOutput], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	cms := config.ChatModels
	if cms == nil || cms.Book == nil || cms.Paper == nil || cms.General == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.ChatInput, *model.ChatOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

func (b *GraphBuilder) newToolsNode(ctx context.Context, ts []tool.BaseTool) (*compose.ToolsNode, error) {
	return compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               ts,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return tools.UnknownToolResult(name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return tools.SanitizeArguments(name, arguments), nil
		},
	})
}

// setupTools creates one tools node per tool-using persona
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	for _, tn := range []struct {
		key   string
		tools []tool.BaseTool
	}{
		{nodes.NodeBookTools, b.config.BookTools},
		{nodes.NodePaperTools, b.config.PaperTools},
	} {
		toolsNode, err := b.newToolsNode(ctx, tn.tools)
		if err != nil {
			logx.Error().Err(err).Str("node", tn.key).Msg("Failed to create tools node")
			return fmt.Errorf("failed to create tools node %s: %w", tn.key, err)
		}
		if err := b.graph.AddToolsNode(tn.key, toolsNode,
			compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
		); err != nil {
			return fmt.Errorf("add %s: %w", tn.key, err)
		}
	}
	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cms := b.config.ChatModels

	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.MessagesManager, b.config.Registry),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeInputConverter, err)
	}

	for key, cm := range map[string]einomodel.BaseChatModel{
		nodes.NodeBookModel:    cms.Book,
		nodes.NodePaperModel:   cms.Paper,
		nodes.NodeGeneralModel: cms.General,
	} {
		if err := b.graph.AddChatModelNode(key, cm,
			compose.WithStatePreHandler(nodes.NewChatModelPreHandler(b.config.ToolMaxCalls)),
			compose.WithStatePostHandler(nodes.NewChatModelPostHandler(cms.ModelName, key)),
		); err != nil {
			return fmt.Errorf("add %s: %w", key, err)
		}
	}

	if err := b.graph.AddLambdaNode(nodes.NodeEnvelopeParser,
		nodes.NewEnvelopeParserNode(b.config.Registry, b.config.MessagesManager),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeEnvelopeParser, err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeBookTools, nodes.NodeBookModel},
		{nodes.NodePaperTools, nodes.NodePaperModel},
		{nodes.NodeGeneralModel, nodes.NodeEnvelopeParser},
		{nodes.NodeEnvelopeParser, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	personaBranch := compose.NewGraphBranch(
		nodes.NewPersonaRouterCondition(),
		map[string]bool{
			nodes.NodeBookModel:    true,
			nodes.NodePaperModel:   true,
			nodes.NodeGeneralModel: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeInputConverter, personaBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding persona branch")
		return fmt.Errorf("error adding persona branch: %w", err)
	}

	for modelNode, toolsNode := range map[string]string{
		nodes.NodeBookModel:  nodes.NodeBookTools,
		nodes.NodePaperModel: nodes.NodePaperTools,
	} {
		decision := compose.NewGraphBranch(
			nodes.NewToolExecutorCondition(toolsNode),
			map[string]bool{
				toolsNode:                true,
				nodes.NodeEnvelopeParser: true,
			},
		)
		if err := b.graph.AddBranch(modelNode, decision); err != nil {
			logx.Error().Err(err).Str("node", modelNode).Msg("Error adding decision branch")
			return fmt.Errorf("error adding decision branch for %s: %w", modelNode, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.ChatInput, *model.ChatOutput], error) {
	// Bound total run steps against runaway tool loops
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
