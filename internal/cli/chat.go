// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for terminals that cannot host the full-screen
// interface (pipes, dumb terminals) or for users who prefer it.
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /retry, /r          Reload the conversation history
//   /clear, /c          Start over with an empty session
//   /export [md|json]   Save the transcript to the current directory
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the message being sent
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/backendchat"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/export"
	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/ui/components"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/util"
)

// HistoryFileName is the input history kept in the config directory.
const HistoryFileName = "chat_history"

// promptText is the REPL prompt.
const promptText = "você> "

// pendingPoll is how often the REPL checks for unconfirmed messages after a
// failed delivery.
const pendingPoll = 50 * time.Millisecond

// =============================================================================
// INPUT HISTORY
// =============================================================================

// Prompter reads one line of input.
type Prompter interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for the line-mode chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, HistoryFileName),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt. Non-empty input is added to
// the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

type chatOptions struct {
	conversationID string
	plain          bool
	out            io.Writer
}

func newChatCommand(st *state) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Chat with the assistant one line at a time.

Replies are rendered as markdown when stdout is a terminal. Messages the
backend does not confirm within the pending timeout are reported as
"` + model.TimeoutErrorContent + `".`,
		Example: `  stellarchat chat
  echo "hello" | stellarchat chat --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = cmd.OutOrStdout()
			return runChat(cmd.Context(), st, opts)
		},
	}
	cmd.Flags().StringVar(&opts.conversationID, "conversation", model.StellarBotID, "conversation to chat in")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print replies without markdown rendering")
	return cmd
}

func runChat(ctx context.Context, st *state, opts chatOptions) error {
	if opts.conversationID == "" {
		opts.conversationID = model.StellarBotID
	}
	backend := st.backend()
	completer := st.completer()
	cfg := st.cfg

	newSession := func() *backendchat.Session {
		return backendchat.New(opts.conversationID, backend,
			backendchat.WithFallbackToAI(cfg.Chat.FallbackToAI),
			backendchat.WithPendingTimeout(cfg.Chat.PendingTimeout()),
			backendchat.WithCompleter(completer),
			backendchat.WithLogger(st.logger),
		)
	}

	var md *components.Markdown
	if cfg.UI.Markdown && !opts.plain && IsStdoutTTY() {
		style := "light"
		if termenv.HasDarkBackground() {
			style = "dark"
		}
		md = components.NewMarkdown(style)
	}

	input := NewChatCLI()
	defer input.Close()

	repl := NewREPL(REPLOptions{
		Input:      input,
		Out:        opts.out,
		NewSession: newSession,
		Markdown:   md,
		Width:      GetTerminalWidth(),
		Logger:     st.logger,
		Title:      chatTitle(opts.conversationID),
	})
	defer repl.Close()
	return repl.Run(ctx)
}

func chatTitle(conversationID string) string {
	if conversationID == model.StellarBotID {
		return model.StellarBotTitle
	}
	return conversationID
}

// =============================================================================
// REPL
// =============================================================================

// REPLOptions configures a REPL.
type REPLOptions struct {
	Input      Prompter
	Out        io.Writer
	NewSession func() *backendchat.Session
	// Markdown renders replies; nil prints them as-is.
	Markdown *components.Markdown
	Width    int
	Logger   *zap.Logger
	// Title names the conversation in the welcome line and exports.
	Title string
	// ExportDir receives /export files. Default: current directory.
	ExportDir string
	// Interrupts cancels the message being sent. Nil uses SIGINT.
	Interrupts <-chan os.Signal
}

// REPL is the line-mode chat loop over one backendchat.Session.
type REPL struct {
	opts    REPLOptions
	logger  *zap.Logger
	session *backendchat.Session
	printed int
}

// NewREPL creates a REPL with a fresh session.
func NewREPL(opts REPLOptions) *REPL {
	if opts.Width <= 0 {
		opts.Width = DefaultTerminalWidth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Title == "" {
		opts.Title = model.StellarBotTitle
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	return &REPL{opts: opts, logger: opts.Logger, session: opts.NewSession()}
}

// Run loads the history and reads lines until /quit, EOF or ctx ends.
func (r *REPL) Run(ctx context.Context) error {
	r.printWelcome()
	r.session.Load(ctx)
	r.reportAvailability()
	r.flush(true)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := r.opts.Input.ReadInput(PromptStyle.Render(promptText))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.println("")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !r.command(ctx, line) {
				return nil
			}
			continue
		}
		r.send(ctx, line)
	}
}

// command runs a slash command and reports whether the loop continues.
func (r *REPL) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	switch name {
	case "/quit", "/q", "/exit":
		return false
	case "/help", "/h":
		r.println(DimStyle.Render("/retry  reload the conversation\n/clear  start over\n/export save the transcript (md or json)\n/quit   exit"))
	case "/retry", "/r":
		r.session.ClearError()
		r.session.Retry(ctx)
		r.printed = 0
		r.reportAvailability()
		r.flush(true)
	case "/clear", "/c":
		r.session.Close()
		r.session = r.opts.NewSession()
		r.printed = 0
		r.println(DimStyle.Render("Conversa reiniciada"))
	case "/export", "/e":
		format := ""
		if len(fields) > 1 {
			format = fields[1]
		}
		r.export(format)
	default:
		r.println(ErrorStyle.Render("unknown command " + name + " (try /help)"))
	}
	return true
}

// send delivers one message. Ctrl+C cancels the delivery only.
func (r *REPL) send(ctx context.Context, content string) {
	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupts := r.opts.Interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		interrupts = ch
	}
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-sendCtx.Done():
		}
	}()

	err := r.session.Send(sendCtx, content)
	if err != nil {
		r.logger.Debug("delivery failed", zap.Error(err))
		r.awaitPending(sendCtx)
	}
	r.flush(false)

	if e := r.session.Err(); e != "" {
		r.println(styles.RenderError(e))
	} else if err != nil && errors.Is(sendCtx.Err(), context.Canceled) && ctx.Err() == nil {
		r.println(WarningStyle.Render("[Cancelled]"))
	}
}

// export writes the current transcript in format ("md" or "json").
func (r *REPL) export(format string) {
	opts := &export.Options{OutputDir: r.opts.ExportDir, IncludeTimestamps: true}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		r.println(ErrorStyle.Render(err.Error()))
		return
	}
	tr := export.NewTranscript(r.session.ConversationID(), r.opts.Title, r.session.Messages())
	path, err := export.ToFile(tr, exporter, opts)
	if err != nil {
		r.logger.Warn("export failed", zap.Error(err))
		r.println(ErrorStyle.Render(err.Error()))
		return
	}
	r.logger.Info("transcript exported", zap.String("path", path), zap.Int("messages", len(tr.Messages)))
	r.println(DimStyle.Render(styles.Indicators.Check + " exported to " + path))
}

// awaitPending waits until every unconfirmed message either got its
// timeout notice or ctx ends.
func (r *REPL) awaitPending(ctx context.Context) {
	ticker := time.NewTicker(pendingPoll)
	defer ticker.Stop()
	for r.session.PendingCount() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// flush prints messages not printed yet. User messages are only echoed
// when replaying history; otherwise they are shown as a check mark.
func (r *REPL) flush(replay bool) {
	msgs := r.session.Messages()
	for _, m := range msgs[min(r.printed, len(msgs)):] {
		r.printMessage(m, replay)
	}
	r.printed = len(msgs)
}

func (r *REPL) printMessage(m model.Message, replay bool) {
	stamp := DimStyle.Render(util.FormatClock(m.Timestamp))
	switch {
	case m.IsError():
		r.println(styles.RenderError(m.Content) + " " + stamp)
	case m.Role == model.RoleUser && !replay:
		r.println(DimStyle.Render(styles.Indicators.Check+" enviado ") + stamp)
	case m.Role == model.RoleUser:
		r.println(UserStyle.Render(m.Role.DisplayName()+":") + " " + m.Content + " " + stamp)
	default:
		body := m.Content
		if r.opts.Markdown != nil {
			body = strings.TrimRight(r.opts.Markdown.Render(body, r.opts.Width-4), "\n")
		}
		r.println(AssistantStyle.Render(styles.Indicators.Bot+" "+m.Role.DisplayName()) + " " + stamp)
		r.println(body)
	}
}

func (r *REPL) reportAvailability() {
	if !r.session.BackendAvailable() {
		r.println(WarningStyle.Render(styles.Indicators.Offline + " Backend not connected - using AI fallback"))
	}
}

func (r *REPL) printWelcome() {
	r.println(TitleStyle.Render(r.opts.Title))
	r.println(DimStyle.Render("Type a message, /help for commands, Ctrl+D to exit"))
	r.println(RenderSeparator(min(r.opts.Width-4, 70)))
}

func (r *REPL) println(s string) {
	fmt.Fprintln(r.opts.Out, s)
}

// Close stops the session's timers.
func (r *REPL) Close() {
	r.session.Close()
}
