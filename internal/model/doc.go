// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// The JSON shapes match the chat backend's REST API, so the same types are
// decoded from the backend and rendered by the UI.
//
// # Key Types
//
//   - Conversation: one row of the conversation list
//   - Message: a single chat message with optional metadata
//   - Role: message author (user, assistant)
//
// Only the Stellar bot conversation (StellarBotID) accepts messages; every
// other conversation is decorative.
package model
