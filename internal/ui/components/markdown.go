// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders assistant replies. Renderers are cached per wrap width
// since building one parses the whole style sheet.
type Markdown struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer using a glamour standard style ("dark",
// "light", "notty").
func NewMarkdown(style string) *Markdown {
	if style == "" {
		style = "dark"
	}
	return &Markdown{style: style, renderers: make(map[int]*glamour.TermRenderer)}
}

// Render returns content rendered for width. It falls back to the raw text
// when glamour fails.
func (m *Markdown) Render(content string, width int) string {
	if m == nil || strings.TrimSpace(content) == "" {
		return content
	}
	r, err := m.renderer(width)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) (*glamour.TermRenderer, error) {
	if width < 10 {
		width = 10
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	m.renderers[width] = r
	return r, nil
}
