// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the TUI, the line-mode chat
// and the configuration layer.
//
// # Key Functions
//
// Display:
//   - Truncate, PadRight: display-width aware (go-runewidth)
//   - Initials: avatar fallback letters for a contact title
//
// Time:
//   - FormatClock: "15:04" bubble timestamps
//   - FormatListTime: sidebar timestamps (HH:MM today, DD/MM otherwise)
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
