package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/library-assistant/server/internal/agent/graph"
	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/agent/repo"
	"github.com/library-assistant/server/internal/arxiv"
	"github.com/library-assistant/server/internal/core"
	"github.com/library-assistant/server/internal/library"
	"github.com/library-assistant/server/internal/server"
	logx "github.com/library-assistant/server/pkg/logger"
	pkgredis "github.com/library-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Server server.Config
	Arxiv  arxiv.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	ChatModel    model.ChatModelConfig
	Conversation model.ConversationConfig
}

var cfg AppConfig

var rootCmd = &cobra.Command{
	Use:   "library-assistant",
	Short: "Chat assistant that manages a book and research-paper library",
	Long: `library-assistant routes chat prompts to a librarian persona, lets the persona
answer through a completion provider and returns a validated action envelope
that a client applies to its library.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil {
			// still usable with a plain environment
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
		}
		if err := envconfig.Process("", &cfg); err != nil {
			return fmt.Errorf("failed to process environment config: %w", err)
		}
		logx.Init(logx.LoggerOpts{Environment: cfg.Environment})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
}

// chatApp is the wired chat graph plus the conversation store behind it.
// history is nil when Redis is not configured.
type chatApp struct {
	runner  graph.Runner
	history *repo.RedisConversationRepository
	close   func()
}

// buildApp wires Redis (optional), the arXiv client and the chat graph.
// close releases whatever was opened.
func buildApp(ctx context.Context, c AppConfig, reg *library.Registry) (*chatApp, error) {
	if c.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	app := &chatApp{close: func() {}}
	var convRepo model.ConversationRepository
	rdb, err := c.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
	}
	if rdb != nil {
		logx.Info().Msg("Connected to Redis; conversation history enabled")
		app.history = repo.NewRedisConversationRepository(rdb, c.Conversation.TTL)
		convRepo = app.history
		app.close = func() { _ = rdb.Close() }
	} else {
		logx.Info().Msg("REDIS_URL not set; conversation history disabled")
	}

	runner, err := graph.BuildChatGraph(ctx, graph.Config{
		APIKey:           c.APIKey,
		BaseURL:          c.BaseURL,
		ChatModel:        c.ChatModel,
		Conversation:     c.Conversation,
		ConversationRepo: convRepo,
		Registry:         reg,
		Papers:           arxiv.NewClient(c.Arxiv),
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	app.runner = runner
	return app, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
