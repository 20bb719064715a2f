// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the stellarchat TUI.

# Color System (colors.go)

The palette follows WhatsApp Web. Every color is a Lip Gloss AdaptiveColor;
the dark variants are the ones the interface was designed around:

	Background    #111b21 - panes
	Panel         #202c33 - headers, search box, received bubbles
	Accent        #00a884 - brand, unread badges, active tab
	OutgoingBg    #005c4b - sent bubbles
	TextSecondary #8696a0 - timestamps, hints, previews
	TextPrimary   #e9edef - body text

Banner colors (amber, blue, red) mark the connection states.

# Theme (theme.go)

Theme groups the Lip Gloss styles used by the components, grouped by screen
area: sidebar, chat window, bubbles, input, welcome and connection banner.
NewTheme detects the terminal color profile through termenv; NewThemeWithProfile
pins it, which keeps rendering deterministic in tests.
*/
package styles
