// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
)

// init configures the lipgloss color profile from terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and the chat banner.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Accent)

	// PromptStyle is the REPL prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Accent).
			Bold(true)

	// AssistantStyle labels replies.
	AssistantStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary).
			Bold(true)

	// UserStyle labels the user's own messages when history is replayed.
	UserStyle = lipgloss.NewStyle().
			Foreground(styles.Accent)

	// ErrorStyle is used for error messages and failed deliveries.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.ErrorFg).
			Bold(true)

	// WarningStyle is used for offline notices.
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.WarningFg)

	// DimStyle is used for secondary information and hints.
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// SeparatorStyle is used for visual separators.
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.Divider)
)

// RenderSeparator renders a horizontal rule of the given width (70 when
// omitted).
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("─", w))
}
