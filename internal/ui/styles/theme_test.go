// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteDarkValues(t *testing.T) {
	tests := []struct {
		name  string
		color lipgloss.AdaptiveColor
		want  string
	}{
		{"Background", Background, "#111b21"},
		{"Panel", Panel, "#202c33"},
		{"Accent", Accent, "#00a884"},
		{"OutgoingBg", OutgoingBg, "#005c4b"},
		{"TextSecondary", TextSecondary, "#8696a0"},
		{"TextPrimary", TextPrimary, "#e9edef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.color.Dark)
			assert.NotEmpty(t, tt.color.Light)
		})
	}
}

func TestNewThemeWithProfile(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii)
	require.NotNil(t, theme)
	assert.True(t, theme.IsDark)
	assert.False(t, theme.HasTrueColor)
	assert.Equal(t, termenv.Ascii, theme.ColorProfile)

	// Ascii drops colors but keeps layout.
	out := theme.UnreadBadge.Render("3")
	assert.Equal(t, " 3 ", out)
	assert.NotContains(t, theme.UserBubble.Render("oi"), "\x1b[")
}

func TestTrueColorThemeEmitsColor(t *testing.T) {
	theme := NewThemeWithProfile(termenv.TrueColor)
	assert.True(t, theme.HasTrueColor)
	assert.Contains(t, theme.UserBubble.Render("oi"), "\x1b[")
}

func TestAvatarWidth(t *testing.T) {
	theme := NewThemeWithProfile(termenv.Ascii)
	assert.Equal(t, 4, lipgloss.Width(theme.Avatar.Render("AS")))
	assert.Equal(t, 4, lipgloss.Width(theme.BotAvatar.Render("SA")))
}

func TestRenderHelpers(t *testing.T) {
	assert.True(t, strings.Contains(RenderError("falhou"), "falhou"))
	assert.True(t, strings.Contains(RenderError("falhou"), Indicators.Error))
	assert.Contains(t, RenderHint("dica"), "dica")
}
