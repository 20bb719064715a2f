// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// TYPES
// =============================================================================

// Turn is one message of the conversation sent as context.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// Streamer produces a reply to turns, calling onToken for every text delta.
// It returns the complete reply.
type Streamer interface {
	Stream(ctx context.Context, turns []Turn, onToken func(token string)) (string, error)
}

// ErrNotConfigured is returned by Direct without an API key.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// StreamError is a failure that happened after some content was received.
type StreamError struct {
	Partial string // Content received before error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RemoteError is an error part sent by the server mid-stream.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "completion failed: " + e.Message
}

// wrapPartial attaches partial content to err.
func wrapPartial(partial string, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{Partial: partial, Err: err}
}
