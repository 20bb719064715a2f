// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stellarchat/stellarchat-tui/internal/ui/styles"
	"github.com/stellarchat/stellarchat-tui/internal/ws"
)

// DescriptionDelay is how long the banner must stay visible before the
// description line appears.
const DescriptionDelay = 3 * time.Second

// BannerKind selects the banner color.
type BannerKind int

const (
	BannerNone BannerKind = iota
	BannerOffline
	BannerConnecting
	BannerRealtimeOffline
	BannerError
)

// Banner is what the connection indicator shows.
type Banner struct {
	Kind        BannerKind
	Icon        string
	Title       string
	Description string
}

// BannerFor picks the banner for the current state. An unavailable backend
// takes precedence over the WebSocket state.
func BannerFor(status ws.Status, backendAvailable bool) Banner {
	if !backendAvailable {
		return Banner{
			Kind:        BannerOffline,
			Icon:        "ⓘ",
			Title:       "Offline Mode",
			Description: "Backend not connected - using AI fallback",
		}
	}
	switch status {
	case ws.StatusConnecting:
		return Banner{
			Kind:        BannerConnecting,
			Icon:        styles.Indicators.Connecting,
			Title:       "Connecting...",
			Description: "Establishing real-time connection",
		}
	case ws.StatusDisconnected:
		return Banner{
			Kind:        BannerRealtimeOffline,
			Icon:        styles.Indicators.Offline,
			Title:       "Real-time Offline",
			Description: "Chat works, but no live updates",
		}
	case ws.StatusError:
		return Banner{
			Kind:        BannerError,
			Icon:        styles.Indicators.Error,
			Title:       "Connection Error",
			Description: "WebSocket connection failed",
		}
	}
	return Banner{Kind: BannerNone}
}

// ConnectionStatus is the connection banner. It remembers when it became
// visible to delay the description.
type ConnectionStatus struct {
	status           ws.Status
	backendAvailable bool
	visibleSince     time.Time

	now   func() time.Time
	theme *styles.Theme
}

// NewConnectionStatus creates a banner for a disconnected socket and an
// unknown backend.
func NewConnectionStatus(theme *styles.Theme) ConnectionStatus {
	c := ConnectionStatus{status: ws.StatusDisconnected, now: time.Now, theme: theme}
	c.visibleSince = c.now()
	return c
}

// SetClock overrides the time source.
func (c *ConnectionStatus) SetClock(now func() time.Time) {
	c.now = now
	if c.Visible() {
		c.visibleSince = now()
	}
}

// Update records a new state. The description timer starts when the banner
// appears and keeps running across state changes while it stays visible.
func (c *ConnectionStatus) Update(status ws.Status, backendAvailable bool) {
	wasVisible := c.Visible()
	c.status = status
	c.backendAvailable = backendAvailable
	if !wasVisible && c.Visible() {
		c.visibleSince = c.now()
	}
}

// Visible reports whether the banner is shown.
func (c ConnectionStatus) Visible() bool {
	return c.status != ws.StatusConnected || !c.backendAvailable
}

// ShowDescription reports whether the description line is shown.
func (c ConnectionStatus) ShowDescription() bool {
	return c.Visible() && c.now().Sub(c.visibleSince) >= DescriptionDelay
}

// Banner returns the current banner.
func (c ConnectionStatus) Banner() Banner {
	if !c.Visible() {
		return Banner{Kind: BannerNone}
	}
	return BannerFor(c.status, c.backendAvailable)
}

// View renders the banner, or "" when hidden.
func (c ConnectionStatus) View() string {
	b := c.Banner()
	if b.Kind == BannerNone {
		return ""
	}
	t := c.theme

	var style lipgloss.Style
	switch b.Kind {
	case BannerOffline:
		style = t.BannerInfo
	case BannerConnecting:
		style = t.BannerWarning
	case BannerError:
		style = t.BannerError
	default:
		style = t.BannerMuted
	}

	content := t.BannerTitle.Render(b.Icon + " " + b.Title)
	if c.ShowDescription() {
		content = lipgloss.JoinVertical(lipgloss.Left, content, t.BannerDescription.Render(b.Description))
	}
	return style.Render(content)
}
