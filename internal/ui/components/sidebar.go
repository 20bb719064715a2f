// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stellarchat/stellarchat-tui/internal/conversations"
	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/util"
)

// Texts shown by the sidebar.
const (
	SidebarTitle      = "WhatsApp"
	SearchPlaceholder = "Pesquisar ou começar uma nova conversa"
	NoMessages        = "Nenhuma mensagem"
	NoConversations   = "Nenhuma conversa encontrada"
	LoadingText       = "Carregando conversas..."
)

// rowHeight is the number of lines one conversation takes.
const rowHeight = 2

// =============================================================================
// TABS
// =============================================================================

// Tab is a sidebar filter.
type Tab int

const (
	TabAll Tab = iota
	TabUnread
	TabGroups
)

var tabLabels = [...]string{"Todas", "Não lidas", "Grupos"}

// String returns the tab label.
func (t Tab) String() string {
	if t < 0 || int(t) >= len(tabLabels) {
		return "?"
	}
	return tabLabels[t]
}

// Next returns the tab to the right, wrapping around.
func (t Tab) Next() Tab {
	return (t + 1) % Tab(len(tabLabels))
}

// apply filters convs for the tab. Groups do not exist yet, so the Grupos
// tab is always empty.
func (t Tab) apply(convs []model.Conversation) []model.Conversation {
	switch t {
	case TabUnread:
		var out []model.Conversation
		for _, c := range convs {
			if c.HasUnread() {
				out = append(out, c)
			}
		}
		return out
	case TabGroups:
		return nil
	default:
		return convs
	}
}

// =============================================================================
// KEYS
// =============================================================================

// SidebarKeyMap defines the sidebar key bindings.
type SidebarKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
}

// DefaultSidebarKeyMap returns the default sidebar bindings. Letters are
// left to the search box.
func DefaultSidebarKeyMap() SidebarKeyMap {
	return SidebarKeyMap{
		Up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up")),
		Down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down")),
		NextTab: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("C-t", "filter")),
	}
}

// =============================================================================
// SIDEBAR MODEL
// =============================================================================

// Sidebar is the conversation list.
type Sidebar struct {
	conversations []model.Conversation
	selectedID    string
	loading       bool

	search textinput.Model
	tab    Tab
	cursor int
	offset int
	keys   SidebarKeyMap

	focused bool
	width   int
	height  int
	now     func() time.Time

	theme *styles.Theme
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) Sidebar {
	ti := textinput.New()
	ti.Placeholder = SearchPlaceholder
	ti.Prompt = styles.Indicators.Search + " "
	ti.CharLimit = 100
	ti.Focus()

	return Sidebar{
		search:  ti,
		keys:    DefaultSidebarKeyMap(),
		width:   36,
		height:  20,
		now:     time.Now,
		theme:   theme,
		focused: true,
	}
}

// SetConversations replaces the list. The cursor stays on the same
// conversation when it is still visible.
func (s *Sidebar) SetConversations(convs []model.Conversation) {
	var current string
	if c, ok := s.Current(); ok {
		current = c.ID
	}
	s.conversations = convs
	s.restoreCursor(current)
}

// SetLoading toggles the loading placeholder.
func (s *Sidebar) SetLoading(loading bool) {
	s.loading = loading
}

// SetSelectedID marks the open conversation.
func (s *Sidebar) SetSelectedID(id string) {
	s.selectedID = id
}

// SetSize updates the dimensions.
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.search.Width = max(width-6, 4)
	s.clampOffset()
}

// SetClock overrides the time source used for list times.
func (s *Sidebar) SetClock(now func() time.Time) {
	s.now = now
}

// Focus gives the sidebar keyboard focus.
func (s *Sidebar) Focus() tea.Cmd {
	s.focused = true
	return s.search.Focus()
}

// Blur removes keyboard focus.
func (s *Sidebar) Blur() {
	s.focused = false
	s.search.Blur()
}

// Focused reports whether the sidebar has focus.
func (s Sidebar) Focused() bool {
	return s.focused
}

// Query returns the search text.
func (s Sidebar) Query() string {
	return s.search.Value()
}

// SetQuery replaces the search text.
func (s *Sidebar) SetQuery(q string) {
	s.search.SetValue(q)
	s.cursor, s.offset = 0, 0
}

// Tab returns the active filter.
func (s Sidebar) Tab() Tab {
	return s.tab
}

// SetTab switches the filter.
func (s *Sidebar) SetTab(t Tab) {
	s.tab = t
	s.cursor, s.offset = 0, 0
}

// Visible returns the conversations after search and tab filtering.
func (s Sidebar) Visible() []model.Conversation {
	return s.tab.apply(conversations.FilterConversations(s.conversations, s.search.Value()))
}

// Cursor returns the highlighted row index.
func (s Sidebar) Cursor() int {
	return s.cursor
}

// Current returns the highlighted conversation, selectable or not.
func (s Sidebar) Current() (model.Conversation, bool) {
	visible := s.Visible()
	if s.cursor < 0 || s.cursor >= len(visible) {
		return model.Conversation{}, false
	}
	return visible[s.cursor], true
}

// Selected returns the highlighted conversation if it can be opened.
func (s Sidebar) Selected() (model.Conversation, bool) {
	c, ok := s.Current()
	if !ok || !c.Functional() {
		return model.Conversation{}, false
	}
	return c, true
}

// MoveUp moves the cursor one row up.
func (s *Sidebar) MoveUp() {
	if s.cursor > 0 {
		s.cursor--
	}
	s.clampOffset()
}

// MoveDown moves the cursor one row down.
func (s *Sidebar) MoveDown() {
	if s.cursor < len(s.Visible())-1 {
		s.cursor++
	}
	s.clampOffset()
}

func (s *Sidebar) restoreCursor(id string) {
	visible := s.Visible()
	for i, c := range visible {
		if c.ID == id {
			s.cursor = i
			s.clampOffset()
			return
		}
	}
	if s.cursor >= len(visible) {
		s.cursor = max(len(visible)-1, 0)
	}
	s.clampOffset()
}

// listRows is how many conversations fit below the header, search and tabs.
func (s Sidebar) listRows() int {
	return max((s.height-5)/rowHeight, 1)
}

func (s *Sidebar) clampOffset() {
	rows := s.listRows()
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+rows {
		s.offset = s.cursor - rows + 1
	}
	if s.offset < 0 {
		s.offset = 0
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles navigation and search input. Enter is left to the parent.
func (s Sidebar) Update(msg tea.Msg) (Sidebar, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && s.focused {
		switch {
		case key.Matches(km, s.keys.Up):
			s.MoveUp()
			return s, nil
		case key.Matches(km, s.keys.Down):
			s.MoveDown()
			return s, nil
		case key.Matches(km, s.keys.NextTab):
			s.SetTab(s.tab.Next())
			return s, nil
		}
	}

	before := s.search.Value()
	var cmd tea.Cmd
	s.search, cmd = s.search.Update(msg)
	if s.search.Value() != before {
		s.cursor, s.offset = 0, 0
	}
	return s, cmd
}

// View renders the sidebar.
func (s Sidebar) View() string {
	width := max(s.width, 20)
	t := s.theme

	header := t.SidebarHeader.Width(width).Render(t.SidebarTitle.Render(SidebarTitle))
	search := t.SearchBox.Width(width).Render(s.search.View())

	tabs := make([]string, 0, len(tabLabels))
	for i := range tabLabels {
		style := t.Tab
		if Tab(i) == s.tab {
			style = t.TabActive
		}
		tabs = append(tabs, style.Render(Tab(i).String()))
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	return lipgloss.JoinVertical(lipgloss.Left, header, search, tabRow, "", s.renderList(width))
}

func (s Sidebar) renderList(width int) string {
	t := s.theme
	if s.loading && len(s.conversations) == 0 {
		return t.EmptyList.Render(LoadingText)
	}
	visible := s.Visible()
	if len(visible) == 0 {
		return t.EmptyList.Render(NoConversations)
	}

	end := min(s.offset+s.listRows(), len(visible))
	rows := make([]string, 0, end-s.offset)
	for i := s.offset; i < end; i++ {
		rows = append(rows, s.renderRow(visible[i], i == s.cursor, width))
	}
	return strings.Join(rows, "\n")
}

func (s Sidebar) renderRow(c model.Conversation, highlighted bool, width int) string {
	t := s.theme

	initials := []rune(c.Initials())
	if len(initials) > 2 {
		initials = initials[:2]
	}
	avatarStyle := t.Avatar
	if c.IsBot() {
		avatarStyle = t.BotAvatar
	}
	avatar := avatarStyle.Render(string(initials))

	// avatar(4) + gap(1) + padding(2)
	inner := max(width-7, 8)

	var when string
	if c.LastMessageTime != nil {
		when = util.FormatListTime(*c.LastMessageTime, s.now())
	}
	timeStyle := t.RowTime
	if c.HasUnread() {
		timeStyle = t.RowTimeUnread
	}
	titleWidth := max(inner-lipgloss.Width(when)-1, 4)
	title := c.Title
	if c.ID == s.selectedID {
		title = "▸ " + title
	}
	line1 := t.RowTitle.Render(util.PadRight(title, titleWidth)) + " " + timeStyle.Render(when)

	preview := util.SingleLine(c.LastMessage)
	if preview == "" {
		preview = NoMessages
	}
	var badge string
	if c.HasUnread() {
		badge = t.UnreadBadge.Render(fmt.Sprintf("%d", c.UnreadCount))
	}
	previewWidth := max(inner-lipgloss.Width(badge)-1, 4)
	line2 := t.RowPreview.Render(util.PadRight(preview, previewWidth)) + " " + badge

	body := lipgloss.JoinVertical(lipgloss.Left, line1, line2)
	row := lipgloss.JoinHorizontal(lipgloss.Top, avatar, " ", body)

	style := t.Row
	switch {
	case highlighted:
		style = t.RowSelected
	case !c.Functional():
		style = t.RowDisabled
	}
	return style.Width(width).Render(row)
}
