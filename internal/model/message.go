// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Stellar"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Metadata keys and sources written by the client.
const (
	MetaSource  = "source"
	MetaIsError = "isError"

	SourceTimeoutError = "timeout-error"
	SourceAIFallback   = "ai-fallback"
)

// TimeoutErrorContent is shown when the backend never confirmed a message.
const TimeoutErrorContent = "Mensagem não registrada"

// Message represents a single message in a conversation.
type Message struct {
	ID             string         `json:"id" validate:"required"`
	Content        string         `json:"content"`
	Role           Role           `json:"role" validate:"required,oneof=user assistant"`
	Timestamp      time.Time      `json:"timestamp" validate:"required"`
	ConversationID string         `json:"conversationId" validate:"required"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// Streaming is set while an AI reply is still arriving.
	Streaming bool `json:"-"`
}

// NewUserMessage creates an optimistic user message with a client-side id
// of the form user-<unix millis>-<9 base36 chars>.
func NewUserMessage(conversationID, content string) Message {
	now := time.Now()
	return Message{
		ID:             fmt.Sprintf("user-%d-%s", now.UnixMilli(), randomSuffix()),
		Content:        content,
		Role:           RoleUser,
		Timestamp:      now,
		ConversationID: conversationID,
	}
}

// NewTimeoutErrorMessage creates the bubble shown when a pending message
// was never confirmed.
func NewTimeoutErrorMessage(conversationID string) Message {
	now := time.Now()
	return Message{
		ID:             fmt.Sprintf("error-%d", now.UnixMilli()),
		Content:        TimeoutErrorContent,
		Role:           RoleAssistant,
		Timestamp:      now,
		ConversationID: conversationID,
		Metadata: map[string]any{
			MetaSource:  SourceTimeoutError,
			MetaIsError: true,
		},
	}
}

// NewStreamingReply creates an empty assistant message that an AI
// completion will fill in.
func NewStreamingReply(conversationID string) Message {
	return Message{
		ID:             "ai-" + uuid.NewString(),
		Role:           RoleAssistant,
		Timestamp:      time.Now(),
		ConversationID: conversationID,
		Metadata:       map[string]any{MetaSource: SourceAIFallback},
		Streaming:      true,
	}
}

// IsError reports whether the message is an error bubble.
func (m Message) IsError() bool {
	v, ok := m.Metadata[MetaIsError].(bool)
	return ok && v
}

// Source returns the metadata source, or "" when unset.
func (m Message) Source() string {
	s, _ := m.Metadata[MetaSource].(string)
	return s
}

// IsEmpty returns true if the message has no visible content.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Validate checks the struct tags of m.
func (m Message) Validate() error {
	if err := validate().Struct(m); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// FormatTimestamp renders t the way the backend expects timestamps:
// UTC ISO-8601 with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// randomSuffix returns 9 base36 characters drawn from a random UUID.
func randomSuffix() string {
	u := uuid.New()
	s := strconv.FormatUint(binary.BigEndian.Uint64(u[8:]), 36)
	for len(s) < 9 {
		s = "0" + s
	}
	return s[:9]
}
