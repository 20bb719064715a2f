// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"encoding/json"
	"fmt"
)

// Type is the kind of an envelope.
type Type string

const (
	TypeMessage Type = "message"
	TypeTyping  Type = "typing"
	TypeOnline  Type = "online"
	TypeOffline Type = "offline"
	TypeError   Type = "error"
	TypeJoin    Type = "join"
)

// Envelope is one WebSocket frame.
type Envelope struct {
	Type           Type            `json:"type"`
	Data           json.RawMessage `json:"data,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	Timestamp      string          `json:"timestamp"`
}

// TypingData is the payload of a typing envelope.
type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

// NewEnvelope builds an envelope with data encoded as JSON. data may be nil.
func NewEnvelope(t Type, conversationID string, data any) (Envelope, error) {
	env := Envelope{Type: t, ConversationID: conversationID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
		}
		env.Data = raw
	}
	return env, nil
}

// Typing decodes the payload of a typing envelope.
func (e Envelope) Typing() (TypingData, error) {
	var td TypingData
	if len(e.Data) == 0 {
		return td, fmt.Errorf("typing envelope has no data")
	}
	if err := json.Unmarshal(e.Data, &td); err != nil {
		return td, fmt.Errorf("invalid typing payload: %w", err)
	}
	return td, nil
}
