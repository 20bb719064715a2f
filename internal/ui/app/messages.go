// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/ws"
)

// =============================================================================
// APPLICATION MESSAGES
// =============================================================================

// ConversationsLoadedMsg is sent when the conversation list was (re)loaded.
type ConversationsLoadedMsg struct{}

// ConversationCreatedMsg is sent when a new conversation was added.
type ConversationCreatedMsg struct {
	ID string
}

// SessionChangedMsg is sent whenever a chat session's state changed.
type SessionChangedMsg struct {
	ConversationID string
}

// SendDoneMsg is sent when a message delivery finished.
type SendDoneMsg struct {
	ConversationID string
	Err            error
}

// WSStatusMsg carries a socket status change. An empty ConversationID is
// the global socket.
type WSStatusMsg struct {
	ConversationID string
	Status         ws.Status
}

// RemoteTypingMsg reports the other side's typing state.
type RemoteTypingMsg struct {
	ConversationID string
	Typing         bool
}

// TickMsg drives time-based redraws (banner description, list times).
type TickMsg time.Time
