// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the UI components for the stellarchat TUI.
//
// Components hold presentation state only (cursor, scroll, input text).
// Conversation data and delivery state come from the app model, which
// pushes snapshots in through setters before every render.
//
// # Components
//
//   - Sidebar: conversation list with search and filter tabs
//   - ChatWindow: header, message bubbles and input of one conversation
//   - Welcome: placeholder shown while no conversation is open
//   - ConnectionStatus: offline and reconnect banner
package components
