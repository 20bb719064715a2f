// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/server"
)

func newServeCommand(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the AI completion proxy",
		Long: `Serve POST /api/chat, streaming OpenAI completions in the data-stream
format the chat client reads, and GET /health.

Model, temperature, token limit and system prompt are reloaded when the
config file changes.`,
		Example: `  OPENAI_API_KEY=sk-... stellarchat serve --listen :3000`,
		Annotations: map[string]string{annotationLog: logStderr},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), st)
		},
	}
	cmd.Flags().StringVar(&st.overrides.Listen, "listen", "", "listen address (default :3000)")
	return cmd
}

func runServe(ctx context.Context, st *state) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	srv, err := server.New(server.FromConfig(st.cfg), st.logger)
	if err != nil {
		return err
	}
	if st.cfg.Completion.OpenAIKey == "" {
		st.logger.Warn("OPENAI_API_KEY is not set; /api/chat will answer 500")
	}

	if st.cfgPath != "" {
		go st.watchConfig(ctx, srv)
	}
	return srv.Run(ctx)
}

// watchConfig hot-swaps the proxy settings when the config file changes.
// Command line overrides are applied again on every reload.
func (st *state) watchConfig(ctx context.Context, srv *server.Server) {
	err := config.Watch(ctx, st.cfgPath, func(cfg *config.Config, err error) {
		if err == nil {
			err = st.overrides.Apply(cfg)
		}
		if err != nil {
			st.logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
			return
		}
		for _, w := range cfg.Warnings {
			st.logger.Warn(w)
		}
		srv.Update(server.FromConfig(cfg))
		st.logger.Info("config reloaded",
			zap.String("model", cfg.Completion.Model),
			zap.Float64("temperature", cfg.Completion.Temperature),
		)
	})
	if err != nil && ctx.Err() == nil {
		st.logger.Warn("config watch stopped", zap.String("path", st.cfgPath), zap.Error(err))
	}
}
