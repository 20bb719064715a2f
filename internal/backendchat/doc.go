// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backendchat delivers messages of one conversation to the backend.
//
// Sending is optimistic: the user's message is shown immediately and a
// pending timer is armed. A backend reply cancels the timer. If nothing
// confirms the message before the timer fires, an error bubble
// ("Mensagem não registrada") is appended instead.
//
// When the backend rejects a message and AI fallback is enabled, the reply
// is streamed from a completion.Streamer; the first streamed token confirms
// the pending message.
package backendchat
