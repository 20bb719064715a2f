// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the REST client for the chat backend.
//
// Endpoints (relative to the base URL):
//
//	GET  /api/conversations        list conversations
//	POST /api/conversations        create a bot conversation
//	GET  /api/messages/{id}        messages of a conversation
//	POST /api/bot                  send a message to the bot
//
// Non-2xx responses surface as *Error. Transport failures (refused, DNS,
// timeouts) are recognised by IsNetworkError so callers can tell "backend
// down" apart from "backend answered badly".
package api
