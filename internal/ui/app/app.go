// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the root Bubble Tea model. It wires the conversation list,
// the chat sessions and the WebSocket clients into the UI components.
//
// Work that blocks or that may call back into the program (REST calls,
// socket dials, session updates) always runs inside a tea.Cmd. Callbacks
// from background goroutines reach the model through tea.Program.Send.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/backendchat"
	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/conversations"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/typing"
	"github.com/stellarchat/stellarchat-tui/internal/ui/components"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/ws"
)

// tickInterval drives clock-dependent redraws.
const tickInterval = time.Second

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is the REST surface used by the conversation list and the chat
// sessions. *api.Client implements it.
type Backend interface {
	conversations.Backend
	backendchat.Backend
}

// Socket is the subset of *ws.Client the model drives.
type Socket interface {
	Connect()
	Reconnect()
	Close()
	Status() ws.Status
	SendTyping(isTyping bool) bool
}

// SocketFactory creates a socket for the given options.
type SocketFactory func(ws.Options) Socket

// Notifier delivers messages from background goroutines. *tea.Program
// implements it.
type Notifier interface {
	Send(msg tea.Msg)
}

// Deps are the collaborators of the model. Nil fields get defaults; a nil
// Backend behaves like an unreachable one.
type Deps struct {
	Config    *config.Config
	Backend   Backend
	Completer completion.Streamer
	Logger    *zap.Logger
	Theme     *styles.Theme
	NewSocket SocketFactory
}

func defaultSocket(opts ws.Options) Socket {
	return ws.NewClient(opts)
}

// bridge forwards callbacks to the running program. Messages sent before a
// target is set, or after it is cleared, are dropped.
type bridge struct {
	mu     sync.RWMutex
	target Notifier
}

func (b *bridge) set(n Notifier) {
	b.mu.Lock()
	b.target = n
	b.mu.Unlock()
}

func (b *bridge) send(msg tea.Msg) {
	b.mu.RLock()
	t := b.target
	b.mu.RUnlock()
	if t != nil {
		t.Send(msg)
	}
}

// =============================================================================
// MODEL
// =============================================================================

type focus int

const (
	focusSidebar focus = iota
	focusChat
)

// chatSession is the state kept per opened functional conversation.
type chatSession struct {
	id           string
	session      *backendchat.Session
	socket       Socket
	typing       *typing.Debouncer
	remoteTyping bool
	wsStatus     ws.Status
}

// Model is the root model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg       *config.Config
	backend   Backend
	completer completion.Streamer
	logger    *zap.Logger
	theme     *styles.Theme
	newSocket SocketFactory
	bridge    *bridge

	keys KeyMap
	help help.Model

	convs        *conversations.Service
	global       Socket
	globalStatus ws.Status

	sessions   map[string]*chatSession
	selectedID string
	focus      focus

	sidebar components.Sidebar
	chat    components.ChatWindow
	welcome components.Welcome
	banner  components.ConnectionStatus

	width        int
	height       int
	bannerHeight int

	closeOnce sync.Once
}

// New creates the root model. The context bounds every request the model
// starts; Shutdown cancels it.
func New(ctx context.Context, deps Deps) *Model {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Theme == nil {
		deps.Theme = styles.NewTheme()
	}
	if deps.NewSocket == nil {
		deps.NewSocket = defaultSocket
	}
	logger := logging.OrNop(deps.Logger).Named("ui")
	ctx, cancel := context.WithCancel(ctx)

	m := &Model{
		ctx:          ctx,
		cancel:       cancel,
		cfg:          deps.Config,
		backend:      deps.Backend,
		completer:    deps.Completer,
		logger:       logger,
		theme:        deps.Theme,
		newSocket:    deps.NewSocket,
		bridge:       &bridge{},
		keys:         DefaultKeyMap(),
		help:         help.New(),
		globalStatus: ws.StatusDisconnected,
		sessions:     make(map[string]*chatSession),
		sidebar:      components.NewSidebar(deps.Theme),
		chat:         components.NewChatWindow(deps.Theme),
		welcome:      components.NewWelcome(deps.Theme),
		banner:       components.NewConnectionStatus(deps.Theme),
	}

	var backend conversations.Backend
	if deps.Backend != nil {
		backend = deps.Backend
	}
	m.convs = conversations.NewService(backend, logger)

	if m.cfg.UI.Markdown {
		style := "light"
		if deps.Theme.IsDark {
			style = "dark"
		}
		m.chat.SetMarkdown(components.NewMarkdown(style))
	}

	m.global = m.newSocket(m.socketOptions("",
		func(s ws.Status) { m.bridge.send(WSStatusMsg{Status: s}) },
		nil,
	))
	return m
}

// SetNotifier sets where background callbacks are delivered.
func (m *Model) SetNotifier(n Notifier) {
	m.bridge.set(n)
}

func (m *Model) socketOptions(conversationID string, onStatus func(ws.Status), onTyping func(bool, string)) ws.Options {
	w := m.cfg.WebSocket
	return ws.Options{
		URL:            w.URL,
		ConversationID: conversationID,
		OnMessage: func(env ws.Envelope) {
			m.logger.Debug("websocket message", zap.String("type", string(env.Type)), zap.String("conversation_id", env.ConversationID))
		},
		OnTyping:             onTyping,
		OnStatusChange:       onStatus,
		MaxReconnectAttempts: w.MaxReconnectAttempts,
		BaseDelay:            w.BaseDelay(),
		MaxDelay:             w.MaxDelay(),
		Logger:               m.logger,
	}
}

func (m *Model) autoConnect() bool {
	return m.cfg.WebSocket.AutoConnect || ws.ShouldAutoConnect(m.cfg.WebSocket.URL, m.cfg.Env)
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init loads the conversations and connects the global socket.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadConversations(),
		m.connectGlobal(),
		m.sidebar.Focus(),
		tick(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case ConversationsLoadedMsg:
		m.syncConversations()
		return m, nil

	case ConversationCreatedMsg:
		m.syncConversations()
		return m, m.open(msg.ID)

	case SessionChangedMsg:
		m.syncChat(msg.ConversationID)
		return m, nil

	case SendDoneMsg:
		if msg.Err != nil {
			m.logger.Debug("message delivery finished with error", zap.String("conversation_id", msg.ConversationID), zap.Error(msg.Err))
		}
		m.syncChat(msg.ConversationID)
		return m, nil

	case WSStatusMsg:
		m.handleStatus(msg)
		return m, nil

	case RemoteTypingMsg:
		if cs, ok := m.sessions[msg.ConversationID]; ok {
			cs.remoteTyping = msg.Typing
			m.syncChat(msg.ConversationID)
		}
		return m, nil

	case TickMsg:
		m.relayoutIfBannerChanged()
		return m, tick()

	case components.SubmitMsg:
		return m, m.send(msg)

	case components.InputChangedMsg:
		if cs, ok := m.sessions[msg.ConversationID]; ok {
			if msg.Empty {
				cs.typing.Stop()
			} else {
				cs.typing.Start()
			}
		}
		return m, nil
	}

	// Anything else (cursor blinks, mouse) goes to both components.
	var sideCmd, chatCmd tea.Cmd
	m.sidebar, sideCmd = m.sidebar.Update(msg)
	m.chat, chatCmd = m.chat.Update(msg)
	return m, tea.Batch(sideCmd, chatCmd)
}

func (m *Model) handleKey(km tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(km, m.keys.Quit):
		// Sockets are closed by Run once the program has stopped; closing
		// them here would wait on callbacks blocked in Program.Send.
		return tea.Quit
	case key.Matches(km, m.keys.New):
		return m.createConversation()
	case key.Matches(km, m.keys.Retry):
		return m.retry()
	case key.Matches(km, m.keys.SwitchPane):
		if m.selectedID == "" {
			return nil
		}
		if m.focus == focusSidebar {
			return m.setFocus(focusChat)
		}
		return m.setFocus(focusSidebar)
	case key.Matches(km, m.keys.Back):
		if m.focus == focusChat {
			return m.setFocus(focusSidebar)
		}
		return nil
	case m.focus == focusSidebar && key.Matches(km, m.keys.Open):
		conv, ok := m.sidebar.Selected()
		if !ok {
			return nil
		}
		return m.open(conv.ID)
	}

	var cmd tea.Cmd
	if m.focus == focusSidebar {
		m.sidebar, cmd = m.sidebar.Update(km)
	} else {
		m.chat, cmd = m.chat.Update(km)
	}
	return cmd
}

func (m *Model) handleStatus(msg WSStatusMsg) {
	if msg.ConversationID == "" {
		m.globalStatus = msg.Status
		m.banner.Update(m.globalStatus, m.convs.BackendAvailable())
		m.relayoutIfBannerChanged()
		return
	}
	if cs, ok := m.sessions[msg.ConversationID]; ok {
		cs.wsStatus = msg.Status
		m.syncChat(msg.ConversationID)
	}
}

// View renders the whole screen.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	t := m.theme

	var main string
	if m.selectedID == "" {
		main = m.welcome.View()
	} else {
		main = m.chat.View()
	}

	bodyHeight := m.bodyHeight()
	divider := t.Divider.Render(strings.TrimSuffix(strings.Repeat("│\n", bodyHeight), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), divider, main)

	parts := make([]string, 0, 3)
	if b := m.banner.View(); b != "" {
		parts = append(parts, lipgloss.PlaceHorizontal(m.width, lipgloss.Right, b))
	}
	parts = append(parts, body, t.Help.Render(m.help.View(m.keys)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// LAYOUT
// =============================================================================

func sidebarWidth(total int) int {
	w := total / 3
	switch {
	case total < 60:
		w = total / 2
	case w < 28:
		w = 28
	case w > 44:
		w = 44
	}
	return max(w, 1)
}

func (m *Model) bodyHeight() int {
	return max(m.height-m.bannerHeight-1, 1)
}

func (m *Model) layout() {
	m.bannerHeight = 0
	if v := m.banner.View(); v != "" {
		m.bannerHeight = lipgloss.Height(v)
	}
	h := m.bodyHeight()
	sw := sidebarWidth(m.width)
	mw := max(m.width-sw-1, 1)
	m.sidebar.SetSize(sw, h)
	m.chat.SetSize(mw, h)
	m.welcome.SetSize(mw, h)
}

// relayoutIfBannerChanged resizes the panes when the banner grew or shrank,
// which happens when it appears, hides or shows its description.
func (m *Model) relayoutIfBannerChanged() {
	h := 0
	if v := m.banner.View(); v != "" {
		h = lipgloss.Height(v)
	}
	if h != m.bannerHeight {
		m.layout()
	}
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusChat {
		m.sidebar.Blur()
		return m.chat.Focus()
	}
	m.chat.Blur()
	return m.sidebar.Focus()
}

// =============================================================================
// STATE SYNC
// =============================================================================

func (m *Model) syncConversations() {
	m.sidebar.SetConversations(m.convs.Conversations())
	m.sidebar.SetLoading(m.convs.Loading())
	m.banner.Update(m.globalStatus, m.convs.BackendAvailable())
	if m.selectedID != "" {
		if conv, ok := m.convs.Get(m.selectedID); ok {
			m.chat.SetConversation(conv)
		}
	}
	m.relayoutIfBannerChanged()
}

// syncChat copies a session's state into the chat window when it is the
// open conversation.
func (m *Model) syncChat(id string) {
	if id == "" || id != m.selectedID {
		return
	}
	cs, ok := m.sessions[id]
	if !ok {
		m.chat.SetMessages(nil)
		m.chat.SetLoading(false)
		m.chat.SetError("")
		m.chat.SetRemoteTyping(false)
		m.chat.SetWSStatus(ws.StatusDisconnected)
		return
	}
	m.chat.SetMessages(cs.session.Messages())
	m.chat.SetLoading(cs.session.Loading())
	m.chat.SetError(cs.session.Err())
	m.chat.SetRemoteTyping(cs.remoteTyping)
	m.chat.SetWSStatus(cs.wsStatus)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// open shows a conversation. Functional conversations get a session, a
// socket and a typing debouncer the first time they are opened.
func (m *Model) open(id string) tea.Cmd {
	conv, ok := m.convs.Get(id)
	if !ok {
		return nil
	}
	m.selectedID = id
	m.sidebar.SetSelectedID(id)
	m.chat.SetConversation(conv)

	var cmds []tea.Cmd
	if conv.Functional() {
		if _, exists := m.sessions[id]; !exists {
			cs := m.startSession(id)
			cmds = append(cmds, m.loadSession(cs), m.connectSocket(cs))
		}
	}
	m.syncChat(id)
	cmds = append(cmds, m.setFocus(focusChat))
	return tea.Batch(cmds...)
}

func (m *Model) startSession(id string) *chatSession {
	cs := &chatSession{id: id, wsStatus: ws.StatusDisconnected}

	var backend backendchat.Backend
	if m.backend != nil {
		backend = m.backend
	}
	cs.session = backendchat.New(id, backend,
		backendchat.WithEnabled(true),
		backendchat.WithFallbackToAI(m.cfg.Chat.FallbackToAI),
		backendchat.WithPendingTimeout(m.cfg.Chat.PendingTimeout()),
		backendchat.WithCompleter(m.completer),
		backendchat.WithOnChange(func() { m.bridge.send(SessionChangedMsg{ConversationID: id}) }),
		backendchat.WithLogger(m.logger),
	)
	cs.socket = m.newSocket(m.socketOptions(id,
		func(s ws.Status) { m.bridge.send(WSStatusMsg{ConversationID: id, Status: s}) },
		func(isTyping bool, conversationID string) {
			if conversationID == id {
				m.bridge.send(RemoteTypingMsg{ConversationID: id, Typing: isTyping})
			}
		},
	))
	socket := cs.socket
	cs.typing = typing.New(func(isTyping bool) { socket.SendTyping(isTyping) }, m.cfg.Chat.TypingDebounce())

	m.sessions[id] = cs
	m.logger.Debug("chat session started", zap.String("conversation_id", id))
	return cs
}

func (m *Model) loadConversations() tea.Cmd {
	ctx, convs := m.ctx, m.convs
	return func() tea.Msg {
		convs.Load(ctx)
		return ConversationsLoadedMsg{}
	}
}

func (m *Model) createConversation() tea.Cmd {
	ctx, convs := m.ctx, m.convs
	return func() tea.Msg {
		return ConversationCreatedMsg{ID: convs.Create(ctx, model.StellarBotType)}
	}
}

func (m *Model) loadSession(cs *chatSession) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		cs.session.Load(ctx)
		return SessionChangedMsg{ConversationID: cs.id}
	}
}

func (m *Model) connectGlobal() tea.Cmd {
	if !m.autoConnect() {
		m.logger.Info("WebSocket URL not configured, running in offline mode")
		return nil
	}
	socket := m.global
	return func() tea.Msg {
		socket.Connect()
		return nil
	}
}

func (m *Model) connectSocket(cs *chatSession) tea.Cmd {
	if !m.autoConnect() {
		return nil
	}
	return func() tea.Msg {
		cs.socket.Connect()
		return nil
	}
}

// send delivers a submitted message. It blocks inside the command until the
// backend or the AI fallback answered.
func (m *Model) send(msg components.SubmitMsg) tea.Cmd {
	cs, ok := m.sessions[msg.ConversationID]
	if !ok {
		return nil
	}
	cs.typing.Stop()

	parent, timeout := m.ctx, m.cfg.Completion.Timeout()
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, timeout)
			defer cancel()
		}
		err := cs.session.Send(ctx, msg.Content)
		return SendDoneMsg{ConversationID: cs.id, Err: err}
	}
}

// retry reloads the open chat and reconnects its socket, or, from the
// sidebar, refreshes the list and reconnects the global socket.
func (m *Model) retry() tea.Cmd {
	ctx := m.ctx
	if cs, ok := m.sessions[m.selectedID]; ok && m.focus == focusChat {
		return func() tea.Msg {
			cs.session.ClearError()
			cs.session.Retry(ctx)
			cs.socket.Reconnect()
			return SessionChangedMsg{ConversationID: cs.id}
		}
	}
	convs, socket := m.convs, m.global
	return func() tea.Msg {
		convs.Refresh(ctx)
		socket.Reconnect()
		return ConversationsLoadedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Shutdown stops every timer and socket. It is safe to call more than once.
// It waits for socket goroutines, so it must not run inside Update while
// the program can still block their callbacks.
func (m *Model) Shutdown() {
	m.closeOnce.Do(func() {
		m.bridge.set(nil)
		m.cancel()
		for _, cs := range m.sessions {
			cs.typing.Close()
			cs.session.Close()
			cs.socket.Close()
		}
		m.global.Close()
		m.logger.Debug("ui shut down", zap.Int("sessions", len(m.sessions)))
	})
}

// Run starts the program and blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)

	var opts []tea.ProgramOption
	if m.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if m.cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)
	m.SetNotifier(p)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	m.Shutdown()
	return err
}
