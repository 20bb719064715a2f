// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// The one functional conversation.
const (
	StellarBotID    = "stellar-bot"
	StellarBotTitle = "Stellar Conversational Assistant"
	StellarBotType  = "stellar"
)

// Conversation is one entry of the conversation list.
type Conversation struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	LastMessage     string     `json:"lastMessage,omitempty"`
	LastMessageTime *time.Time `json:"lastMessageTime,omitempty"`
	UnreadCount     int        `json:"unreadCount" validate:"gte=0"`
	BotType         string     `json:"botType"`
	IsActive        bool       `json:"isActive"`
}

// Functional reports whether the conversation accepts messages.
func (c Conversation) Functional() bool {
	return c.ID == StellarBotID
}

// IsBot reports whether the conversation is backed by a bot.
func (c Conversation) IsBot() bool {
	return c.BotType != "" && c.BotType != "user"
}

// Initials returns the first rune of every word of the title.
func (c Conversation) Initials() string {
	var b strings.Builder
	for _, word := range strings.Fields(c.Title) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(r)
	}
	return b.String()
}

// HasUnread reports whether the conversation has unread messages.
func (c Conversation) HasUnread() bool {
	return c.UnreadCount > 0
}

// Validate checks the struct tags of c.
func (c Conversation) Validate() error {
	if err := validate().Struct(c); err != nil {
		return fmt.Errorf("invalid conversation: %w", err)
	}
	return nil
}
