package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/library-assistant/server/internal/agent/model"
	"github.com/library-assistant/server/internal/library"
	logx "github.com/library-assistant/server/pkg/logger"
)

var demoPrompts = []struct {
	description string
	prompt      string
}{
	{description: "Add a book", prompt: "Please add the book 1984 to my library"},
	{description: "Recommendation without a change", prompt: "What books do you recommend?"},
	{description: "Rate a seeded book", prompt: "Rate Clean Code 5 stars in my library"},
	{description: "Add a paper by arXiv id", prompt: "Add the arXiv paper 1706.03762 to my research papers"},
	{description: "Roadmap feature", prompt: "Put a dark mode feature on the roadmap as planned"},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run scripted prompts against the seeded demo library",
	Long: `demo sends a fixed list of prompts through the chat graph, applies every
returned action to the embedded seed library and prints the final library.
Each prompt carries the current library as context so updates can address
existing ids. With Redis configured the demo conversation starts empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg := library.NewRegistry()
		app, err := buildApp(ctx, cfg, reg)
		if err != nil {
			return err
		}
		defer app.close()

		lib, err := library.Seed()
		if err != nil {
			return err
		}
		conversationID, _ := cmd.Flags().GetString("conversation")
		if app.history != nil {
			if err := app.history.ClearHistory(ctx, conversationID); err != nil {
				return fmt.Errorf("reset demo conversation: %w", err)
			}
		}

		for i, test := range demoPrompts {
			fmt.Printf("\nTest %d: %s\n", i+1, test.description)
			fmt.Printf("Prompt: %q\n", test.prompt)

			state, err := lib.Context()
			if err != nil {
				return err
			}
			out, err := app.runner.Invoke(ctx, model.ChatInput{
				Prompt:         test.prompt,
				ConversationID: conversationID,
				Context:        state,
			})
			if err != nil {
				logx.Error().Err(err).Int("test", i+1).Msg("chat failed")
				continue
			}
			fmt.Printf("[%s] %s\n", out.Persona, out.Content)
			if out.Usage != nil {
				fmt.Printf("usage: %d tokens, $%.6f\n", out.Usage.TotalTokens, out.Usage.CostUSD)
			}
			if out.Action == nil {
				continue
			}

			var result any
			lib, result, err = reg.Apply(lib, *out.Action)
			if err != nil {
				logx.Error().Err(err).Int("test", i+1).Msg("action rejected")
				continue
			}
			fmt.Printf("applied %s.%s\n", out.Action.StateKey, out.Action.SetterKey)
			if result != nil {
				fmt.Printf("placeholder: %+v\n", result)
			}
		}

		fmt.Println("\nFinal library:")
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(lib)
	},
}

func init() {
	demoCmd.Flags().String("conversation", "demo-conversation", "conversation id used for every prompt")
	rootCmd.AddCommand(demoCmd)
}
