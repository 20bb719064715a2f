// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/api"
	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
	"github.com/stellarchat/stellarchat-tui/internal/server"
)

// Version is the application version. Release builds set it with
// -ldflags "-X .../internal/cli.Version=...".
var Version = server.Version

// Command annotations read by the persistent pre-run.
const (
	annotationLog        = "stellarchat/log"
	annotationSkipConfig = "stellarchat/skip-config"

	logStderr = "stderr"
	logNone   = "none"
)

// =============================================================================
// SHARED STATE
// =============================================================================

// state is filled by the persistent flags and the pre-run and shared by
// every command.
type state struct {
	configPath string
	verbose    bool
	overrides  config.Overrides

	cfg     *config.Config
	cfgPath string // file cfg was read from, "" for defaults
	logger  *zap.Logger
}

// setup loads the configuration and builds the logger for cmd.
func (st *state) setup(cmd *cobra.Command) error {
	if cmd.Annotations[annotationSkipConfig] == "true" {
		st.logger = zap.NewNop()
		return nil
	}
	if err := st.loadConfig(); err != nil {
		return err
	}

	logger, err := st.newLogger(cmd.Annotations[annotationLog])
	if err != nil {
		return err
	}
	st.logger = logger
	for _, w := range st.cfg.Warnings {
		st.logger.Warn(w)
	}
	return nil
}

// newLogger builds the logger for the destination named by the command's
// log annotation.
func (st *state) newLogger(dest string) (*zap.Logger, error) {
	switch dest {
	case logNone:
		return zap.NewNop(), nil
	case logStderr:
		return logging.New(logging.Options{Level: st.cfg.Logging.Level, Verbose: st.verbose, Stderr: true})
	}

	file := st.cfg.Logging.File
	if file == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		file = filepath.Join(dir, logging.DefaultFileName)
	}
	return logging.New(logging.Options{Level: st.cfg.Logging.Level, Verbose: st.verbose, File: file})
}

func (st *state) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if st.configPath != "" {
		cfg, err = config.LoadFromPath(st.configPath)
		st.cfgPath = st.configPath
	} else {
		cfg, err = config.Load()
		if path, perr := config.ConfigPath(); perr == nil {
			if _, serr := os.Stat(path); serr == nil {
				st.cfgPath = path
			}
		}
	}
	if err != nil {
		return err
	}
	if err := st.overrides.Apply(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	st.cfg = cfg
	return nil
}

func (st *state) teardown() {
	if st.logger != nil {
		_ = st.logger.Sync()
	}
}

// backend returns the REST client for the configured backend.
func (st *state) backend() *api.Client {
	return api.NewClient(st.cfg.Backend.APIURL).WithTimeout(st.cfg.Backend.Timeout())
}

// completer returns the AI fallback streamer.
func (st *state) completer() completion.Streamer {
	return completion.New(completion.Options{
		ChatURL:       st.cfg.Completion.ChatURL,
		OpenAIKey:     st.cfg.Completion.OpenAIKey,
		OpenAIBaseURL: st.cfg.Completion.OpenAIBaseURL,
		Settings:      completionSettings(st.cfg),
		Logger:        st.logger,
	})
}

func completionSettings(cfg *config.Config) completion.Settings {
	return completion.Settings{
		Model:        cfg.Completion.Model,
		Temperature:  float32(cfg.Completion.Temperature),
		MaxTokens:    cfg.Completion.MaxTokens,
		SystemPrompt: cfg.Completion.SystemPrompt,
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "stellarchat",
		Short: "WhatsApp-style chat client for the terminal",
		Long: `stellarchat talks to the Stellar conversational assistant.

Run without arguments to start the full-screen interface. When stdout is
not a terminal the line-mode chat is started instead.

Messages go to the REST backend first. When it cannot be reached the
assistant answers through the AI completion proxy ("stellarchat serve") or,
with OPENAI_API_KEY set, directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			st.teardown()
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsStdoutTTY() {
				return runChat(cmd.Context(), st, chatOptions{out: cmd.OutOrStdout()})
			}
			return runTUI(cmd.Context(), st)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&st.configPath, "config", "", "config file (default ~/.stellarchat/config.toml)")
	pf.BoolVarP(&st.verbose, "verbose", "v", false, "log at debug level")
	pf.StringVar(&st.overrides.APIURL, "api-url", "", "REST backend URL")
	pf.StringVar(&st.overrides.WSURL, "ws-url", "", "WebSocket backend URL")
	pf.StringVar(&st.overrides.ChatURL, "chat-url", "", "AI completion endpoint")

	root.AddCommand(
		newTUICommand(st),
		newChatCommand(st),
		newServeCommand(st),
		newConfigCommand(st),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		var ttyErr *TTYRequiredError
		if errors.As(err, &ttyErr) {
			fmt.Fprintln(os.Stderr, WarningStyle.Render(err.Error()))
			return 2
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}
