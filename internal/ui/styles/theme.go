// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App        lipgloss.Style
	Pane       lipgloss.Style
	PaneFocus  lipgloss.Style
	Divider    lipgloss.Style
	Help       lipgloss.Style
	HelpKey    lipgloss.Style
	StatusLine lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	SidebarHeader     lipgloss.Style
	SidebarTitle      lipgloss.Style
	SearchBox         lipgloss.Style
	SearchPlaceholder lipgloss.Style
	Tab               lipgloss.Style
	TabActive         lipgloss.Style
	Row               lipgloss.Style
	RowSelected       lipgloss.Style
	RowDisabled       lipgloss.Style
	RowTitle          lipgloss.Style
	RowTime           lipgloss.Style
	RowTimeUnread     lipgloss.Style
	RowPreview        lipgloss.Style
	UnreadBadge       lipgloss.Style
	Avatar            lipgloss.Style
	BotAvatar         lipgloss.Style
	EmptyList         lipgloss.Style

	// ==========================================================================
	// CHAT WINDOW
	// ==========================================================================

	ChatHeader       lipgloss.Style
	ChatName         lipgloss.Style
	ChatStatus       lipgloss.Style
	ChatStatusActive lipgloss.Style
	ErrorBanner      lipgloss.Style
	ErrorBannerHint  lipgloss.Style
	Unavailable      lipgloss.Style
	UnavailableTitle lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	ErrorBubble     lipgloss.Style
	BubbleTime      lipgloss.Style
	BubbleCheck     lipgloss.Style
	StreamingCursor lipgloss.Style

	// ==========================================================================
	// INPUT
	// ==========================================================================

	Input         lipgloss.Style
	InputDisabled lipgloss.Style
	Placeholder   lipgloss.Style

	// ==========================================================================
	// WELCOME
	// ==========================================================================

	WelcomeTitle lipgloss.Style
	WelcomeText  lipgloss.Style
	WelcomeLock  lipgloss.Style

	// ==========================================================================
	// CONNECTION BANNER
	// ==========================================================================

	BannerWarning     lipgloss.Style
	BannerInfo        lipgloss.Style
	BannerError       lipgloss.Style
	BannerMuted       lipgloss.Style
	BannerTitle       lipgloss.Style
	BannerDescription lipgloss.Style
}

// NewTheme creates a theme for the terminal on stdout.
func NewTheme() *Theme {
	output := termenv.NewOutput(os.Stdout)
	return newTheme(output.ColorProfile(), output.HasDarkBackground())
}

// NewThemeWithProfile creates a dark theme pinned to profile.
func NewThemeWithProfile(profile termenv.Profile) *Theme {
	return newTheme(profile, true)
}

func newTheme(profile termenv.Profile, dark bool) *Theme {
	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(dark)

	t := &Theme{
		IsDark:       dark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
		renderer:     r,
	}
	t.initStyles()
	return t
}

// NewStyle returns an empty style bound to the theme's renderer.
func (t *Theme) NewStyle() lipgloss.Style {
	return t.renderer.NewStyle()
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	// Layout
	t.App = s().Background(Background).Foreground(TextPrimary)
	t.Pane = s().BorderStyle(lipgloss.NormalBorder()).BorderForeground(Divider)
	t.PaneFocus = s().BorderStyle(lipgloss.NormalBorder()).BorderForeground(Accent)
	t.Divider = s().Foreground(Divider)
	t.Help = s().Foreground(TextSecondary)
	t.HelpKey = s().Foreground(Accent).Bold(true)
	t.StatusLine = s().Foreground(TextSecondary).Italic(true)

	// Sidebar
	t.SidebarHeader = s().Background(Panel).Padding(0, 1)
	t.SidebarTitle = s().Foreground(TextPrimary).Bold(true)
	t.SearchBox = s().Background(Panel).Foreground(TextPrimary).Padding(0, 1)
	t.SearchPlaceholder = s().Foreground(TextSecondary)
	t.Tab = s().Foreground(TextSecondary).Background(Panel).Padding(0, 1)
	t.TabActive = s().Foreground(Accent).Background(Panel).Bold(true).Padding(0, 1)
	t.Row = s().Padding(0, 1)
	t.RowSelected = s().Background(PanelHover).Padding(0, 1)
	t.RowDisabled = s().Foreground(TextSecondary).Padding(0, 1)
	t.RowTitle = s().Foreground(TextPrimary)
	t.RowTime = s().Foreground(TextSecondary)
	t.RowTimeUnread = s().Foreground(Accent)
	t.RowPreview = s().Foreground(TextSecondary)
	t.UnreadBadge = s().Background(Accent).Foreground(TextInverse).Bold(true).Padding(0, 1)
	t.Avatar = s().Background(AvatarBg).Foreground(TextPrimary).Bold(true).Width(4).Align(lipgloss.Center)
	t.BotAvatar = s().Background(Accent).Foreground(TextInverse).Bold(true).Width(4).Align(lipgloss.Center)
	t.EmptyList = s().Foreground(TextSecondary).Italic(true).Padding(1, 2)

	// Chat window
	t.ChatHeader = s().Background(Panel).Padding(0, 1)
	t.ChatName = s().Foreground(TextPrimary).Bold(true)
	t.ChatStatus = s().Foreground(TextSecondary)
	t.ChatStatusActive = s().Foreground(Accent)
	t.ErrorBanner = s().Background(ErrorBg).Foreground(ErrorFg).Padding(0, 1)
	t.ErrorBannerHint = s().Foreground(ErrorFg).Italic(true)
	t.Unavailable = s().Foreground(TextSecondary).Align(lipgloss.Center)
	t.UnavailableTitle = s().Foreground(TextPrimary).Bold(true)

	// Bubbles
	t.UserBubble = s().Background(OutgoingBg).Foreground(TextPrimary).Padding(0, 1)
	t.AssistantBubble = s().Background(Panel).Foreground(TextPrimary).Padding(0, 1)
	t.ErrorBubble = s().Background(ErrorBg).Foreground(ErrorFg).Padding(0, 1)
	t.BubbleTime = s().Foreground(TextSecondary)
	t.BubbleCheck = s().Foreground(CheckMark)
	t.StreamingCursor = s().Foreground(Accent).Blink(true)

	// Input
	t.Input = s().Background(Panel).Foreground(TextPrimary).Padding(0, 1)
	t.InputDisabled = s().Background(Panel).Foreground(TextSecondary).Padding(0, 1)
	t.Placeholder = s().Foreground(TextSecondary)

	// Welcome
	t.WelcomeTitle = s().Foreground(TextPrimary).Bold(true).Align(lipgloss.Center)
	t.WelcomeText = s().Foreground(TextSecondary).Align(lipgloss.Center)
	t.WelcomeLock = s().Foreground(TextSecondary).Faint(true).Align(lipgloss.Center)

	// Connection banner
	t.BannerWarning = s().Background(WarningBg).Foreground(WarningFg).Padding(0, 1)
	t.BannerInfo = s().Background(InfoBg).Foreground(InfoFg).Padding(0, 1)
	t.BannerError = s().Background(ErrorBg).Foreground(ErrorFg).Padding(0, 1)
	t.BannerMuted = s().Background(Panel).Foreground(TextSecondary).Padding(0, 1)
	t.BannerTitle = s().Bold(true)
	t.BannerDescription = s().Faint(true)
}
