// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/util"
	"github.com/stellarchat/stellarchat-tui/internal/ws"
)

// Texts shown by the chat window.
const (
	InputPlaceholder       = "Type a message"
	UnavailablePlaceholder = "Chat não disponível"
	UnavailableTitle       = "Chat não disponível"
	UnavailableSubtitle    = "Este usuário está offline"
	RetryHint              = "ctrl+r para tentar novamente"

	StatusTyping          = "Typing..."
	StatusRemoteTyping    = "Bot is typing..."
	StatusOnline          = "Online"
	StatusConnecting      = "Connecting..."
	StatusConnectionError = "Connection error"
	StatusOffline         = "Offline"
)

// streamingCursor trails a reply that is still arriving.
const streamingCursor = "▍"

// =============================================================================
// MESSAGES
// =============================================================================

// SubmitMsg asks the app to send Content to a conversation.
type SubmitMsg struct {
	ConversationID string
	Content        string
}

// InputChangedMsg reports an edit of the message input. Empty is true once
// the input holds only whitespace.
type InputChangedMsg struct {
	ConversationID string
	Empty          bool
}

// =============================================================================
// STATUS
// =============================================================================

// StatusText returns the header status line. Local sending wins over the
// remote typing indicator, which wins over the connection state.
func StatusText(conv model.Conversation, loading, remoteTyping bool, status ws.Status) string {
	if !conv.Functional() {
		return StatusOffline
	}
	switch {
	case loading:
		return StatusTyping
	case remoteTyping:
		return StatusRemoteTyping
	}
	switch status {
	case ws.StatusConnected:
		return StatusOnline
	case ws.StatusConnecting:
		return StatusConnecting
	case ws.StatusError:
		return StatusConnectionError
	default:
		return StatusOffline
	}
}

// =============================================================================
// CHAT WINDOW MODEL
// =============================================================================

// ChatWindow shows one conversation.
type ChatWindow struct {
	conversation model.Conversation
	messages     []model.Message
	loading      bool
	remoteTyping bool
	wsStatus     ws.Status
	errText      string

	input    textinput.Model
	viewport viewport.Model
	submit   key.Binding
	markdown *Markdown

	focused bool
	width   int
	height  int

	theme *styles.Theme
}

// NewChatWindow creates an empty chat window.
func NewChatWindow(theme *styles.Theme) ChatWindow {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 4000
	ti.Cursor.SetMode(cursor.CursorStatic)

	c := ChatWindow{
		input:    ti,
		viewport: viewport.New(80, 20),
		submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		wsStatus: ws.StatusDisconnected,
		width:    80,
		height:   24,
		theme:    theme,
	}
	c.updatePlaceholder()
	return c
}

// SetConversation switches to conv and clears the input.
func (c *ChatWindow) SetConversation(conv model.Conversation) {
	if conv.ID != c.conversation.ID {
		c.input.Reset()
		c.messages = nil
		c.errText = ""
		c.remoteTyping = false
	}
	c.conversation = conv
	c.updatePlaceholder()
	c.refresh()
}

// Conversation returns the open conversation.
func (c ChatWindow) Conversation() model.Conversation {
	return c.conversation
}

// SetMessages replaces the messages and scrolls to the newest one.
func (c *ChatWindow) SetMessages(msgs []model.Message) {
	c.messages = msgs
	c.refresh()
}

// SetLoading marks a send in flight. The input ignores keys meanwhile.
func (c *ChatWindow) SetLoading(loading bool) {
	c.loading = loading
}

// SetRemoteTyping shows the remote typing indicator.
func (c *ChatWindow) SetRemoteTyping(typing bool) {
	c.remoteTyping = typing
	c.refresh()
}

// SetWSStatus sets the connection state shown in the header.
func (c *ChatWindow) SetWSStatus(s ws.Status) {
	c.wsStatus = s
}

// SetError sets the error banner text; "" hides it.
func (c *ChatWindow) SetError(text string) {
	c.errText = text
	c.refresh()
}

// SetMarkdown enables markdown rendering of assistant replies; nil disables it.
func (c *ChatWindow) SetMarkdown(md *Markdown) {
	c.markdown = md
	c.refresh()
}

// SetSize updates the dimensions.
func (c *ChatWindow) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.input.Width = max(width-6, 4)
	c.refresh()
}

// Focus gives the input keyboard focus.
func (c *ChatWindow) Focus() tea.Cmd {
	c.focused = true
	if !c.conversation.Functional() {
		return nil
	}
	return c.input.Focus()
}

// Blur removes keyboard focus.
func (c *ChatWindow) Blur() {
	c.focused = false
	c.input.Blur()
}

// Focused reports whether the window has focus.
func (c ChatWindow) Focused() bool {
	return c.focused
}

// Value returns the input text.
func (c ChatWindow) Value() string {
	return c.input.Value()
}

// StatusText returns the header status line.
func (c ChatWindow) StatusText() string {
	return StatusText(c.conversation, c.loading, c.remoteTyping, c.wsStatus)
}

func (c *ChatWindow) updatePlaceholder() {
	if c.conversation.Functional() {
		c.input.Placeholder = InputPlaceholder
	} else {
		c.input.Placeholder = UnavailablePlaceholder
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles input and scrolling. Enter on non-blank text clears the
// input and emits SubmitMsg.
func (c ChatWindow) Update(msg tea.Msg) (ChatWindow, tea.Cmd) {
	km, isKey := msg.(tea.KeyMsg)
	if !isKey {
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		return c, cmd
	}
	if !c.focused {
		return c, nil
	}

	switch km.Type {
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		c.viewport, cmd = c.viewport.Update(msg)
		return c, cmd
	}

	if !c.conversation.Functional() || c.loading {
		return c, nil
	}

	id := c.conversation.ID
	if key.Matches(km, c.submit) {
		content := strings.TrimSpace(c.input.Value())
		if content == "" {
			return c, nil
		}
		c.input.Reset()
		return c, tea.Batch(
			func() tea.Msg { return SubmitMsg{ConversationID: id, Content: content} },
			func() tea.Msg { return InputChangedMsg{ConversationID: id, Empty: true} },
		)
	}

	before := c.input.Value()
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	after := c.input.Value()
	if after == before {
		return c, cmd
	}
	empty := strings.TrimSpace(after) == ""
	return c, tea.Batch(cmd, func() tea.Msg {
		return InputChangedMsg{ConversationID: id, Empty: empty}
	})
}

// View renders the chat window.
func (c ChatWindow) View() string {
	t := c.theme
	width := max(c.width, 20)

	header := c.renderHeader(width)
	input := c.renderInput(width)

	var body string
	if c.conversation.Functional() {
		body = c.viewport.View()
	} else {
		body = c.renderUnavailable(width, c.bodyHeight())
	}

	parts := []string{header, body}
	if c.errText != "" && c.conversation.Functional() {
		parts = append(parts, t.ErrorBanner.Width(width).Render(
			styles.Indicators.Error+" "+c.errText+"  "+t.ErrorBannerHint.Render(RetryHint)))
	}
	parts = append(parts, input)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (c ChatWindow) bodyHeight() int {
	h := c.height - 2 - 1 // header + input
	if c.errText != "" {
		h--
	}
	return max(h, 1)
}

func (c ChatWindow) renderHeader(width int) string {
	t := c.theme

	initials := []rune(c.conversation.Initials())
	if len(initials) > 2 {
		initials = initials[:2]
	}
	avatarStyle := t.Avatar
	if c.conversation.Functional() {
		avatarStyle = t.BotAvatar
	}

	statusStyle := t.ChatStatus
	if c.conversation.Functional() && (c.loading || c.remoteTyping || c.wsStatus == ws.StatusConnected) {
		statusStyle = t.ChatStatusActive
	}

	text := lipgloss.JoinVertical(lipgloss.Left,
		t.ChatName.Render(util.Truncate(c.conversation.Title, max(width-8, 4))),
		statusStyle.Render(c.StatusText()),
	)
	return t.ChatHeader.Width(width).Render(
		lipgloss.JoinHorizontal(lipgloss.Center, avatarStyle.Render(string(initials)), " ", text))
}

func (c ChatWindow) renderInput(width int) string {
	if !c.conversation.Functional() {
		return c.theme.InputDisabled.Width(width).Render(UnavailablePlaceholder)
	}
	return c.theme.Input.Width(width).Render(c.input.View())
}

func (c ChatWindow) renderUnavailable(width, height int) string {
	t := c.theme
	block := lipgloss.JoinVertical(lipgloss.Center,
		t.UnavailableTitle.Render(UnavailableTitle),
		t.Unavailable.Render(UnavailableSubtitle),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, block)
}

// refresh re-renders the messages into the viewport and sticks to the
// bottom.
func (c *ChatWindow) refresh() {
	width := max(c.width, 20)
	c.viewport.Width = width
	c.viewport.Height = c.bodyHeight()
	c.viewport.SetContent(c.renderMessages(width))
	c.viewport.GotoBottom()
}

func (c ChatWindow) renderMessages(width int) string {
	if len(c.messages) == 0 {
		return ""
	}
	maxBubble := max(width*7/10, 16)
	blocks := make([]string, 0, len(c.messages))
	for _, m := range c.messages {
		blocks = append(blocks, c.renderBubble(m, width, maxBubble))
	}
	return strings.Join(blocks, "\n\n")
}

func (c ChatWindow) renderBubble(m model.Message, width, maxBubble int) string {
	t := c.theme

	style := t.AssistantBubble
	align := lipgloss.Left
	switch {
	case m.Role == model.RoleUser:
		style = t.UserBubble
		align = lipgloss.Right
	case m.IsError():
		style = t.ErrorBubble
	}

	// padding(2)
	textWidth := maxBubble - 2
	content := m.Content
	if c.markdown != nil && m.Role == model.RoleAssistant && !m.IsError() && !m.Streaming {
		content = c.markdown.Render(content, textWidth)
	}
	if m.Streaming {
		content += t.StreamingCursor.Render(streamingCursor)
	}

	meta := t.BubbleTime.Render(util.FormatClock(m.Timestamp))
	if m.Role == model.RoleUser && !m.IsError() {
		meta += " " + t.BubbleCheck.Render(styles.Indicators.Check)
	}

	text := t.NewStyle().Width(min(lipgloss.Width(content), textWidth)).Render(content)
	inner := lipgloss.JoinVertical(lipgloss.Right, text, meta)
	bubble := style.Render(inner)
	return lipgloss.PlaceHorizontal(width, align, bubble)
}
