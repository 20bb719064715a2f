// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws is the real-time connection to the chat backend.
//
// Client wraps a gorilla/websocket connection with reconnect logic: any
// close other than a normal one (code 1000) schedules a new attempt after
// an exponential delay, min(base*2^n, max), up to MaxReconnectAttempts
// times. After that the client stays disconnected and the application runs
// in offline mode until Reconnect is called.
//
// Frames are JSON envelopes:
//
//	{"type":"typing","data":{"isTyping":true},"conversationId":"stellar-bot","timestamp":"..."}
//
// Callbacks run on the client's goroutines without any lock held.
package ws
