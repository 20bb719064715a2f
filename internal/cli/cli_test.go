// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stellarchat/stellarchat-tui/internal/backendchat"
	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/model"
)

// =============================================================================
// COMMAND TESTS
// =============================================================================

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"STELLARCHAT_API_URL", "STELLARCHAT_WS_URL", "STELLARCHAT_CHAT_URL", "STELLARCHAT_ENV", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stellarchat "+Version+" ("), out)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	out, err := execute(t, "config", "show", "--config", path, "--api-url", "https://api.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, `"api_url": "https://api.example.com"`)
	assert.Contains(t, out, `"url": "ws://localhost:8001"`)
}

func TestConfigShow_RedactsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	root := NewRootCommand()
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--config", path})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "[REDACTED]")
	assert.NotContains(t, out.String(), "sk-secret")
}

func TestConfigShow_InvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	_, err = execute(t, "config", "show", "--config", path, "--ws-url", "http://not-a-socket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")
}

func TestConfigShow_MissingFile(t *testing.T) {
	_, err := execute(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrNoConfigFile))
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowhere.toml")
	out, err := execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestRootCommand_Flags(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"config", "verbose", "api-url", "ws-url", "chat-url"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"tui", "chat", "serve", "config", "version"} {
		assert.True(t, names[want], want)
	}

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("listen"))
	assert.Equal(t, logStderr, serve.Annotations[annotationLog])
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "nope")
	assert.Error(t, err)
}

func TestCompletionSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Completion.Model = "gpt-4o"
	cfg.Completion.Temperature = 0.25
	cfg.Completion.MaxTokens = 42

	s := completionSettings(cfg)
	assert.Equal(t, "gpt-4o", s.Model)
	assert.InDelta(t, 0.25, float64(s.Temperature), 1e-6)
	assert.Equal(t, 42, s.MaxTokens)
	assert.Equal(t, config.DefaultSystemPrompt, s.SystemPrompt)
}

func TestTTYRequiredError(t *testing.T) {
	err := &TTYRequiredError{Operation: "start the full-screen interface"}
	assert.Contains(t, err.Error(), "stellarchat chat")
	assert.Equal(t, "stdout is not a terminal", (&TTYRequiredError{}).Error())
}

// =============================================================================
// REPL TESTS
// =============================================================================

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type echoBackend struct {
	history []model.Message
}

func (b *echoBackend) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return b.history, nil
}

func (b *echoBackend) SendMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	return model.Message{
		ID:             "r-" + content,
		Content:        "echo: " + content,
		Role:           model.RoleAssistant,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
	}, nil
}

type stubStreamer struct {
	reply string
	err   error
}

func (s stubStreamer) Stream(ctx context.Context, turns []completion.Turn, onToken func(string)) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	onToken(s.reply)
	return s.reply, nil
}

func runREPL(t *testing.T, newSession func() *backendchat.Session, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	repl := NewREPL(REPLOptions{
		Input:      &scriptedInput{lines: lines},
		Out:        &out,
		NewSession: newSession,
		Interrupts: make(chan os.Signal),
	})
	defer repl.Close()
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPL_BackendReply(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := &echoBackend{history: []model.Message{
		{ID: "h1", Content: "earlier question", Role: model.RoleUser, Timestamp: time.Now()},
	}}
	out := runREPL(t, func() *backendchat.Session {
		return backendchat.New(model.StellarBotID, backend)
	}, "hello", "/quit", "never read")

	assert.Contains(t, out, model.StellarBotTitle)
	assert.Contains(t, out, "You: earlier question")
	assert.Contains(t, out, "enviado")
	assert.Contains(t, out, "echo: hello")
	assert.NotContains(t, out, "Backend not connected")
	assert.NotContains(t, out, "never read")
}

func TestREPL_OfflineUsesAIFallback(t *testing.T) {
	defer goleak.VerifyNone(t)
	out := runREPL(t, func() *backendchat.Session {
		return backendchat.New(model.StellarBotID, nil, backendchat.WithCompleter(stubStreamer{reply: "Olá da IA"}))
	}, "hi")

	assert.Contains(t, out, "Backend not connected - using AI fallback")
	assert.Contains(t, out, "Olá da IA")
	assert.NotContains(t, out, model.TimeoutErrorContent)
}

func TestREPL_UnconfirmedMessageTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)
	out := runREPL(t, func() *backendchat.Session {
		return backendchat.New(model.StellarBotID, nil,
			backendchat.WithFallbackToAI(false),
			backendchat.WithPendingTimeout(20*time.Millisecond),
		)
	}, "hi")

	assert.Contains(t, out, model.TimeoutErrorContent)
}

func TestREPL_AIUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t)
	out := runREPL(t, func() *backendchat.Session {
		return backendchat.New(model.StellarBotID, nil,
			backendchat.WithCompleter(stubStreamer{err: errors.New("boom")}),
			backendchat.WithPendingTimeout(20*time.Millisecond),
		)
	}, "hi")

	assert.Contains(t, out, backendchat.ErrAIUnavailable)
	assert.Contains(t, out, model.TimeoutErrorContent)
}

func TestREPL_SlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t)
	sessions := 0
	backend := &echoBackend{}
	out := runREPL(t, func() *backendchat.Session {
		sessions++
		return backendchat.New(model.StellarBotID, backend)
	}, "/help", "/bogus", "", "/clear", "/retry")

	assert.Contains(t, out, "/retry  reload the conversation")
	assert.Contains(t, out, "unknown command /bogus")
	assert.Contains(t, out, "Conversa reiniciada")
	assert.Equal(t, 2, sessions)
}

func TestREPL_Export(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()
	var out bytes.Buffer
	repl := NewREPL(REPLOptions{
		Input:      &scriptedInput{lines: []string{"hello", "/export json", "/export pdf"}},
		Out:        &out,
		NewSession: func() *backendchat.Session { return backendchat.New(model.StellarBotID, &echoBackend{}) },
		Interrupts: make(chan os.Signal),
		ExportDir:  dir,
	})
	defer repl.Close()
	require.NoError(t, repl.Run(context.Background()))

	assert.Contains(t, out.String(), "exported to "+dir)
	assert.Contains(t, out.String(), `unknown export format "pdf"`)

	files, err := filepath.Glob(filepath.Join(dir, "conversation_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "echo: hello"`)
}
