// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation transcript to disk as Markdown or
// JSON. Transcripts are built from the messages a chat session currently
// holds, including local timeout notices.
//
// Usage:
//
//	tr := export.NewTranscript(conversationID, title, session.Messages())
//	path, err := export.ToFile(tr, export.NewMarkdownExporter(nil), nil)
package export
