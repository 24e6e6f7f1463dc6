package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/library-assistant/server/internal/library"
	"github.com/library-assistant/server/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `serve exposes POST /chat, POST /chat/stream (server-sent events),
DELETE /chat/{conversationId} and GET /healthz. SIGINT or SIGTERM triggers a
graceful shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := buildApp(ctx, cfg, library.NewRegistry())
		if err != nil {
			return err
		}
		defer app.close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		var opts []server.Option
		if app.history != nil {
			opts = append(opts, server.WithHistory(app.history))
		}
		return server.New(app.runner, opts...).ListenAndServe(ctx, cfg.Server)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
