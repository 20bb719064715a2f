// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/model"
	"github.com/stellarchat/stellarchat-tui/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("conversation has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a snapshot of one conversation.
type Transcript struct {
	ConversationID string          `json:"conversationId"`
	Title          string          `json:"title"`
	ExportedAt     time.Time       `json:"exportedAt"`
	Messages       []model.Message `json:"messages"`
}

// NewTranscript copies msgs into a transcript stamped with the current time.
// Streaming placeholders that never received content are left out.
func NewTranscript(conversationID, title string, msgs []model.Message) *Transcript {
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Streaming && m.IsEmpty() {
			continue
		}
		kept = append(kept, m)
	}
	return &Transcript{
		ConversationID: conversationID,
		Title:          title,
		ExportedAt:     time.Now(),
		Messages:       kept,
	}
}

func (t *Transcript) validate() error {
	if t == nil {
		return errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeTimestamps adds per-message times to Markdown output.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for "md"/"markdown" or "json".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use md or json)", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile renders t with exporter and writes it with 0600 permissions.
// Returns the output path.
func ToFile(t *Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, Filename(t, exporter.FileExtension()))
	if err := util.AtomicWriteFile(outputPath, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Filename builds "conversation_<title>_<timestamp><ext>".
func Filename(t *Transcript, ext string) string {
	name := t.Title
	if name == "" {
		name = t.ConversationID
	}
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(name),
		t.ExportedAt.Format("20060102_150405"),
		ext,
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}
