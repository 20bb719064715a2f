// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
)

// Welcome screen texts.
const (
	WelcomeTitle       = "WhatsApp Web"
	WelcomeDescription = "Send and receive messages without keeping your phone online. Use WhatsApp on up to 4 linked devices and 1 phone at the same time."
	WelcomeLock        = "Your personal messages are end-to-end encrypted"
)

// =============================================================================
// WELCOME SCREEN MODEL
// =============================================================================

// Welcome is shown while no conversation is open.
type Welcome struct {
	// Dimensions
	width  int
	height int

	// Theme
	theme *styles.Theme
}

// NewWelcome creates a new welcome screen.
func NewWelcome(theme *styles.Theme) Welcome {
	return Welcome{theme: theme}
}

// SetSize updates the dimensions.
func (w *Welcome) SetSize(width, height int) {
	w.width = width
	w.height = height
}

// View renders the welcome screen centered in its area.
func (w Welcome) View() string {
	width := w.width
	if width == 0 {
		width = 80
	}
	height := w.height
	if height == 0 {
		height = 24
	}

	// Text column: 60 wide on large terminals, narrower otherwise.
	textWidth := 60
	if width < 68 {
		textWidth = width - 8
	}
	if textWidth < 20 {
		textWidth = 20
	}

	t := w.theme
	block := lipgloss.JoinVertical(lipgloss.Center,
		t.WelcomeTitle.Render(WelcomeTitle),
		"",
		t.WelcomeText.Width(textWidth).Render(WelcomeDescription),
		"",
		t.WelcomeLock.Render(styles.Indicators.Lock+" "+WelcomeLock),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, block)
}
