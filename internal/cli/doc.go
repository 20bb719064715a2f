// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the stellarchat command line.
//
// Commands:
//
//	stellarchat                 full-screen interface (line mode when piped)
//	stellarchat tui             full-screen interface
//	stellarchat chat            line-mode chat with input history
//	stellarchat serve           AI completion proxy on /api/chat
//	stellarchat config show     print the effective configuration
//	stellarchat config path     print the config file location
//	stellarchat config init     write a default config file
//	stellarchat version         print version information
//
// Persistent flags (--config, --verbose, --api-url, --ws-url, --chat-url)
// are applied on top of the config file and the environment.
package cli
