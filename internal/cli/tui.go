// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/ui/app"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
)

func newTUICommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), st)
		},
	}
}

func runTUI(ctx context.Context, st *state) error {
	if err := RequiresTTY("start the full-screen interface"); err != nil {
		return err
	}
	st.logger.Info("starting interface",
		zap.String("api_url", st.cfg.Backend.APIURL),
		zap.String("ws_url", st.cfg.WebSocket.URL),
		zap.String("env", st.cfg.Env),
	)
	return app.Run(ctx, app.Deps{
		Config:    st.cfg,
		Backend:   st.backend(),
		Completer: st.completer(),
		Logger:    st.logger,
		Theme:     styles.NewTheme(),
	})
}
