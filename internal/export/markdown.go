// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts as Markdown with YAML frontmatter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter. Nil opts uses defaults.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	title := t.Title
	if title == "" {
		title = t.ConversationID
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
	fmt.Fprintf(&sb, "conversation: %s\n", escapeYAML(t.ConversationID))
	fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
	fmt.Fprintf(&sb, "exported: %s\n", t.ExportedAt.Format(time.RFC3339))
	sb.WriteString("generator: stellarchat\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	for i, msg := range t.Messages {
		label := roleLabel(msg)
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, util.FormatClock(msg.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		content := strings.TrimSpace(msg.Content)
		if msg.IsError() {
			content = "> " + content
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(msg model.Message) string {
	switch {
	case msg.IsError():
		return "[Error]"
	case msg.Role == model.RoleUser:
		return "[" + msg.Role.DisplayName() + "]"
	case msg.Source() == model.SourceAIFallback:
		return "[" + msg.Role.DisplayName() + " (AI)]"
	default:
		return "[" + msg.Role.DisplayName() + "]"
	}
}

// escapeYAML quotes values that YAML would otherwise misread.
func escapeYAML(s string) string {
	if s == "" || strings.ContainsAny(s, ":#{}[],&*?|<>=!%@`'\"\n") ||
		strings.HasPrefix(s, "-") || strings.HasPrefix(s, " ") {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		return `"` + s + `"`
	}
	return s
}

// escapeMarkdown escapes characters that would change heading rendering.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"*", `\*`,
		"_", `\_`,
		"`", "\\`",
		"#", `\#`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}
