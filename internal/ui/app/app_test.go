// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/ui/components"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/ws"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSocket struct {
	mu         sync.Mutex
	opts       ws.Options
	connects   int
	reconnects int
	closes     int
	typing     []bool
}

func (f *fakeSocket) Connect()          { f.mu.Lock(); f.connects++; f.mu.Unlock() }
func (f *fakeSocket) Reconnect()        { f.mu.Lock(); f.reconnects++; f.mu.Unlock() }
func (f *fakeSocket) Close()            { f.mu.Lock(); f.closes++; f.mu.Unlock() }
func (f *fakeSocket) Status() ws.Status { return ws.StatusDisconnected }

func (f *fakeSocket) SendTyping(isTyping bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, isTyping)
	return true
}

func (f *fakeSocket) typingEvents() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.typing...)
}

type socketRecorder struct {
	mu      sync.Mutex
	sockets []*fakeSocket
}

func (r *socketRecorder) factory(opts ws.Options) Socket {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &fakeSocket{opts: opts}
	r.sockets = append(r.sockets, s)
	return s
}

// forConversation returns the socket created for id ("" is the global one).
func (r *socketRecorder) forConversation(id string) *fakeSocket {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sockets {
		if s.opts.ConversationID == id {
			return s
		}
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (n *recordingNotifier) Send(msg tea.Msg) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) received() []tea.Msg {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]tea.Msg(nil), n.msgs...)
}

type fakeBackend struct {
	convs   []model.Conversation
	convErr error
	sendErr error
}

func (f *fakeBackend) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	return f.convs, f.convErr
}

func (f *fakeBackend) CreateConversation(ctx context.Context, botType string) (model.Conversation, error) {
	return model.Conversation{}, errors.New("not supported")
}

func (f *fakeBackend) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	if f.sendErr != nil {
		return model.Message{}, f.sendErr
	}
	return model.Message{
		ID:             "reply-1",
		Content:        "echo: " + content,
		Role:           model.RoleAssistant,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
	}, nil
}

type fakeStreamer struct {
	tokens []string
}

func (f *fakeStreamer) Stream(ctx context.Context, turns []completion.Turn, onToken func(string)) (string, error) {
	var sb strings.Builder
	for _, tok := range f.tokens {
		onToken(tok)
		sb.WriteString(tok)
	}
	return sb.String(), nil
}

// =============================================================================
// HELPERS
// =============================================================================

type harness struct {
	m        *Model
	sockets  *socketRecorder
	notifier *recordingNotifier
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UI.Markdown = false
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config, backend Backend, completer completion.Streamer) *harness {
	t.Helper()
	h := &harness{sockets: &socketRecorder{}, notifier: &recordingNotifier{}}
	deps := Deps{
		Config:    cfg,
		Completer: completer,
		Theme:     styles.NewThemeWithProfile(termenv.Ascii),
		NewSocket: h.sockets.factory,
	}
	if backend != nil {
		deps.Backend = backend
	}
	h.m = New(context.Background(), deps)
	h.m.SetNotifier(h.notifier)
	t.Cleanup(h.m.Shutdown)

	h.update(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.run(h.m.loadConversations())
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	_, cmd := h.m.Update(msg)
	return cmd
}

// run executes cmd, feeds every resulting message back into the model and
// returns them.
func (h *harness) run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, h.run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	h.update(msg)
	return []tea.Msg{msg}
}

func (h *harness) key(t tea.KeyType) tea.Cmd {
	return h.update(tea.KeyMsg{Type: t})
}

func (h *harness) openBot(t *testing.T) *chatSession {
	t.Helper()
	h.run(h.key(tea.KeyEnter))
	require.Equal(t, model.StellarBotID, h.m.selectedID)
	cs, ok := h.m.sessions[model.StellarBotID]
	require.True(t, ok)
	return cs
}

func hasMsg[T any](msgs []tea.Msg) bool {
	return len(msgsOf[T](msgs)) > 0
}

func msgsOf[T any](msgs []tea.Msg) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// TESTS
// =============================================================================

func TestModel_OfflineShowsMockList(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	assert.Len(t, h.m.sidebar.Visible(), 11)
	assert.False(t, h.m.convs.BackendAvailable())

	view := h.m.View()
	assert.Contains(t, view, "Ana Silva")
	assert.Contains(t, view, "Offline Mode")
	assert.Contains(t, view, components.WelcomeTitle)
}

func TestModel_NoAutoConnectWithDefaultURL(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	assert.Nil(t, h.m.connectGlobal())
	global := h.sockets.forConversation("")
	require.NotNil(t, global)
	assert.Equal(t, 0, global.connects)
}

func TestModel_AutoConnectInDevelopment(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig()
	cfg.Env = config.EnvDevelopment
	h := newHarness(t, cfg, nil, nil)

	h.run(h.m.connectGlobal())
	assert.Equal(t, 1, h.sockets.forConversation("").connects)

	h.openBot(t)
	assert.Equal(t, 1, h.sockets.forConversation(model.StellarBotID).connects)
}

func TestModel_WSStatusFeedsBanner(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := &fakeBackend{convs: []model.Conversation{
		{ID: model.StellarBotID, Title: model.StellarBotTitle, BotType: model.StellarBotType},
	}}
	h := newHarness(t, testConfig(), backend, nil)
	require.True(t, h.m.convs.BackendAvailable())

	h.update(WSStatusMsg{Status: ws.StatusConnecting})
	assert.Equal(t, components.BannerConnecting, h.m.banner.Banner().Kind)
	assert.Contains(t, h.m.View(), "Connecting...")

	h.update(WSStatusMsg{Status: ws.StatusConnected})
	assert.False(t, h.m.banner.Visible())
	assert.NotContains(t, h.m.View(), "Connecting...")

	h.update(WSStatusMsg{Status: ws.StatusError})
	assert.Equal(t, components.BannerError, h.m.banner.Banner().Kind)
}

func TestModel_EnterOpensFunctionalConversation(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	h.openBot(t)
	assert.Equal(t, focusChat, h.m.focus)
	assert.True(t, h.m.chat.Focused())
	assert.NotNil(t, h.sockets.forConversation(model.StellarBotID))
	assert.Contains(t, h.m.View(), components.InputPlaceholder)

	// Opening again reuses the session.
	h.key(tea.KeyEsc)
	h.run(h.key(tea.KeyEnter))
	assert.Len(t, h.m.sessions, 1)
}

func TestModel_EnterIgnoresNonFunctionalRow(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	h.key(tea.KeyDown)
	h.run(h.key(tea.KeyEnter))

	assert.Empty(t, h.m.selectedID)
	assert.Empty(t, h.m.sessions)
	assert.Equal(t, focusSidebar, h.m.focus)
}

func TestModel_TabAndEscSwitchFocus(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	// Nothing open: tab does nothing.
	h.key(tea.KeyTab)
	assert.Equal(t, focusSidebar, h.m.focus)

	h.openBot(t)
	h.key(tea.KeyTab)
	assert.Equal(t, focusSidebar, h.m.focus)
	assert.True(t, h.m.sidebar.Focused())

	h.key(tea.KeyTab)
	assert.Equal(t, focusChat, h.m.focus)

	h.key(tea.KeyEsc)
	assert.Equal(t, focusSidebar, h.m.focus)
	assert.Equal(t, model.StellarBotID, h.m.selectedID)
}

func TestModel_SubmitDeliversToBackend(t *testing.T) {
	defer goleak.VerifyNone(t)
	backend := &fakeBackend{convs: []model.Conversation{
		{ID: model.StellarBotID, Title: model.StellarBotTitle, BotType: model.StellarBotType},
	}}
	h := newHarness(t, testConfig(), backend, nil)
	cs := h.openBot(t)

	msgs := h.run(h.update(components.SubmitMsg{ConversationID: model.StellarBotID, Content: "oi"}))
	require.True(t, hasMsg[SendDoneMsg](msgs))

	got := cs.session.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "oi", got[0].Content)
	assert.Equal(t, "echo: oi", got[1].Content)
	assert.Zero(t, cs.session.PendingCount())
	assert.Contains(t, h.m.View(), "echo: oi")
	assert.True(t, hasMsg[SessionChangedMsg](h.notifier.received()))
}

func TestModel_SubmitFallsBackToAI(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, &fakeStreamer{tokens: []string{"Olá", "!"}})
	cs := h.openBot(t)

	h.run(h.update(components.SubmitMsg{ConversationID: model.StellarBotID, Content: "hello"}))

	got := cs.session.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "Olá!", got[1].Content)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
	assert.Empty(t, cs.session.Err())
	assert.Contains(t, h.m.View(), "Olá!")
}

func TestModel_UnconfirmedMessageShowsTimeoutBubble(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig()
	cfg.Chat.FallbackToAI = false
	cfg.Chat.PendingTimeoutMs = 20
	h := newHarness(t, cfg, nil, nil)
	cs := h.openBot(t)

	msgs := h.run(h.update(components.SubmitMsg{ConversationID: model.StellarBotID, Content: "hello"}))
	require.Len(t, msgs, 1)
	done := msgs[0].(SendDoneMsg)
	assert.Error(t, done.Err)

	require.Eventually(t, func() bool {
		for _, m := range cs.session.Messages() {
			if m.IsError() {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	h.update(SessionChangedMsg{ConversationID: model.StellarBotID})
	assert.Contains(t, h.m.View(), model.TimeoutErrorContent)
}

func TestModel_InputDrivesTypingIndicator(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)
	h.openBot(t)
	socket := h.sockets.forConversation(model.StellarBotID)

	h.update(components.InputChangedMsg{ConversationID: model.StellarBotID})
	h.update(components.InputChangedMsg{ConversationID: model.StellarBotID})
	h.update(components.InputChangedMsg{ConversationID: model.StellarBotID, Empty: true})

	assert.Equal(t, []bool{true, false}, socket.typingEvents())
}

func TestModel_RemoteTypingShownInHeader(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)
	h.openBot(t)
	socket := h.sockets.forConversation(model.StellarBotID)

	socket.opts.OnTyping(true, "someone-else")
	socket.opts.OnTyping(true, model.StellarBotID)

	received := msgsOf[RemoteTypingMsg](h.notifier.received())
	require.Len(t, received, 1)
	h.update(received[0])
	assert.Equal(t, components.StatusRemoteTyping, h.m.chat.StatusText())

	h.update(RemoteTypingMsg{ConversationID: model.StellarBotID, Typing: false})
	assert.Equal(t, components.StatusOffline, h.m.chat.StatusText())
}

func TestModel_SocketStatusReachesOpenChat(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)
	h.openBot(t)
	socket := h.sockets.forConversation(model.StellarBotID)

	socket.opts.OnStatusChange(ws.StatusConnected)
	received := msgsOf[WSStatusMsg](h.notifier.received())
	require.Len(t, received, 1)
	assert.Equal(t, WSStatusMsg{ConversationID: model.StellarBotID, Status: ws.StatusConnected}, received[0])

	h.update(received[0])
	assert.Equal(t, components.StatusOnline, h.m.chat.StatusText())
}

func TestModel_CtrlNCreatesConversation(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	msgs := h.run(h.key(tea.KeyCtrlN))
	require.True(t, hasMsg[ConversationCreatedMsg](msgs))

	assert.True(t, strings.HasPrefix(h.m.selectedID, "mock-"))
	assert.Len(t, h.m.sidebar.Visible(), 12)
	assert.Empty(t, h.m.sessions)
	assert.Contains(t, h.m.View(), components.UnavailableTitle)
}

func TestModel_RetryInChatReloadsAndReconnects(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)
	h.openBot(t)

	msgs := h.run(h.key(tea.KeyCtrlR))
	assert.True(t, hasMsg[SessionChangedMsg](msgs))
	assert.Equal(t, 1, h.sockets.forConversation(model.StellarBotID).reconnects)
	assert.Equal(t, 0, h.sockets.forConversation("").reconnects)
}

func TestModel_RetryInSidebarRefreshes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	msgs := h.run(h.key(tea.KeyCtrlR))
	assert.True(t, hasMsg[ConversationsLoadedMsg](msgs))
	assert.Equal(t, 1, h.sockets.forConversation("").reconnects)
	assert.Len(t, h.m.sidebar.Visible(), 11)
}

func TestModel_QuitClosesEverything(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)
	h.openBot(t)

	cmd := h.key(tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 0, h.sockets.forConversation("").closes, "sockets close after the program stops")

	before := len(h.notifier.received())
	h.m.Shutdown()
	assert.Equal(t, 1, h.sockets.forConversation("").closes)
	assert.Equal(t, 1, h.sockets.forConversation(model.StellarBotID).closes)

	// Callbacks after shutdown are dropped.
	h.sockets.forConversation("").opts.OnStatusChange(ws.StatusError)
	assert.Len(t, h.notifier.received(), before)

	h.m.Shutdown()
	assert.Equal(t, 1, h.sockets.forConversation("").closes)
}

// programNotifier delivers like tea.Program.Send: unbuffered, and only
// released when someone reads or the program has exited.
type programNotifier struct {
	msgs    chan tea.Msg
	done    chan struct{}
	blocked atomic.Int32
}

func newProgramNotifier() *programNotifier {
	return &programNotifier{msgs: make(chan tea.Msg), done: make(chan struct{})}
}

func (n *programNotifier) Send(msg tea.Msg) {
	n.blocked.Add(1)
	defer n.blocked.Add(-1)
	select {
	case n.msgs <- msg:
	case <-n.done:
	}
}

func TestModel_QuitWithCallbackBlockedInSend(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := testConfig()
	cfg.WebSocket.URL = "ws://127.0.0.1:1"
	cfg.WebSocket.AutoConnect = true

	m := New(context.Background(), Deps{Config: cfg, Theme: styles.NewThemeWithProfile(termenv.Ascii)})
	n := newProgramNotifier()
	m.SetNotifier(n)

	connect := m.connectGlobal()
	require.NotNil(t, connect)
	connect()
	require.Eventually(t, func() bool { return n.blocked.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	quit := make(chan tea.Cmd, 1)
	go func() {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		quit <- cmd
	}()
	select {
	case cmd := <-quit:
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	case <-time.After(2 * time.Second):
		t.Fatal("quit key blocked on a socket callback")
	}

	// The program has stopped: pending sends return.
	close(n.done)
	stopped := make(chan struct{})
	go func() {
		m.Shutdown()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish after the program stopped")
	}
}

func TestModel_BannerShrinksBody(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, testConfig(), nil, nil)

	require.True(t, h.m.banner.Visible())
	assert.Equal(t, 40-h.m.bannerHeight-1, h.m.bodyHeight())
	assert.Positive(t, h.m.bannerHeight)
}

func TestSidebarWidth(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{40, 20},
		{80, 28},
		{120, 40},
		{200, 44},
		{1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sidebarWidth(tt.total), "total=%d", tt.total)
	}
}
