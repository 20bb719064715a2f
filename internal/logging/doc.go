// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used across stellarchat.
//
// The TUI owns the terminal, so interactive commands log JSON lines to a
// file under ~/.stellarchat. The proxy server logs to stderr.
package logging
