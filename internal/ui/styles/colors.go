// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// SURFACE COLORS
// =============================================================================

// Background - Pane background
var Background = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#111b21"}

// Panel - Headers, search box, received bubbles
var Panel = lipgloss.AdaptiveColor{Light: "#F0F2F5", Dark: "#202c33"}

// PanelHover - Selected sidebar row
var PanelHover = lipgloss.AdaptiveColor{Light: "#F5F6F6", Dark: "#2a3942"}

// Divider - Separators between panes and rows
var Divider = lipgloss.AdaptiveColor{Light: "#E9EDEF", Dark: "#222d34"}

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Accent - Brand green: unread badges, active tab, focus
var Accent = lipgloss.AdaptiveColor{Light: "#008069", Dark: "#00a884"}

// OutgoingBg - Background of sent bubbles
var OutgoingBg = lipgloss.AdaptiveColor{Light: "#D9FDD3", Dark: "#005c4b"}

// AvatarBg - Initials circle of regular contacts
var AvatarBg = lipgloss.AdaptiveColor{Light: "#DFE5E7", Dark: "#6a7175"}

// =============================================================================
// TEXT COLORS
// =============================================================================

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#111B21", Dark: "#e9edef"}

// TextSecondary - Timestamps, previews, placeholders
var TextSecondary = lipgloss.AdaptiveColor{Light: "#667781", Dark: "#8696a0"}

// TextInverse - Text on accent backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#111b21"}

// CheckMark - Delivery tick on sent messages
var CheckMark = lipgloss.AdaptiveColor{Light: "#667781", Dark: "#8696a0"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// ErrorFg - Error text
var ErrorFg = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#fca5a5"}

// ErrorBg - Error bubbles and the error banner
var ErrorBg = lipgloss.AdaptiveColor{Light: "#FEE2E2", Dark: "#7f1d1d"}

// WarningBg - "Connecting..." banner
var WarningBg = lipgloss.AdaptiveColor{Light: "#FEF3C7", Dark: "#78350f"}

// WarningFg - Text on warning banners
var WarningFg = lipgloss.AdaptiveColor{Light: "#92400E", Dark: "#fde68a"}

// InfoBg - "Offline Mode" banner
var InfoBg = lipgloss.AdaptiveColor{Light: "#DBEAFE", Dark: "#1e3a8a"}

// InfoFg - Text on info banners
var InfoFg = lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#bfdbfe"}

// =============================================================================
// INDICATORS
// =============================================================================

// Indicators are the glyphs shown next to states. They carry meaning
// without color.
var Indicators = struct {
	Check      string
	Offline    string
	Connecting string
	Error      string
	Lock       string
	Search     string
	Bot        string
}{
	Check:      "✓",
	Offline:    "⚠",
	Connecting: "↻",
	Error:      "✗",
	Lock:       "🔒",
	Search:     "⌕",
	Bot:        "✦",
}

// RenderError renders message in the error color with the error glyph.
func RenderError(message string) string {
	return lipgloss.NewStyle().Foreground(ErrorFg).Bold(true).Render(Indicators.Error + " " + message)
}

// RenderHint renders message in the secondary text color.
func RenderHint(message string) string {
	return lipgloss.NewStyle().Foreground(TextSecondary).Render(message)
}
