// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion streams AI replies for the chat.
//
// Two Streamers are provided:
//   - Client speaks the data-stream protocol served by "stellarchat serve"
//     (POST {messages}, newline-delimited "<code>:<json>" parts)
//   - Direct calls the OpenAI API itself through go-openai
//
// Fallback chains them so the proxy is preferred and the direct client is
// only used when the proxy cannot be reached.
//
// # Data-stream parts
//
//	0:"Hel"                      text delta
//	3:"rate limited"             error
//	e:{"finishReason":"stop"}    finish step
//	d:{"finishReason":"stop"}    finish message
//
// Unknown part codes are ignored.
package completion
