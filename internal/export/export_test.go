// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarchat/stellarchat-tui/internal/model"
)

func sampleTranscript() *Transcript {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	reply := model.NewStreamingReply(model.StellarBotID)
	reply.Content = "Olá! Como posso ajudar?"
	reply.Streaming = false
	reply.Timestamp = at

	user := model.NewUserMessage(model.StellarBotID, "oi")
	user.Timestamp = at

	timeout := model.NewTimeoutErrorMessage(model.StellarBotID)
	timeout.Timestamp = at

	tr := NewTranscript(model.StellarBotID, model.StellarBotTitle, []model.Message{
		user,
		reply,
		timeout,
		model.NewStreamingReply(model.StellarBotID),
	})
	tr.ExportedAt = at
	return tr
}

func TestNewTranscript_DropsEmptyStreamingReplies(t *testing.T) {
	tr := sampleTranscript()
	assert.Len(t, tr.Messages, 3)
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "title: "+model.StellarBotTitle+"\n")
	assert.Contains(t, md, "messages: 3\n")
	assert.Contains(t, md, "# "+model.StellarBotTitle)
	assert.Contains(t, md, "### [You] <sub>09:26</sub>")
	assert.Contains(t, md, "### [Stellar (AI)]")
	assert.Contains(t, md, "### [Error]")
	assert.Contains(t, md, "> "+model.TimeoutErrorContent)
}

func TestMarkdownExporter_NoTimestamps(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{IncludeTimestamps: false}).Export(sampleTranscript())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<sub>")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter().Export(sampleTranscript())
	require.NoError(t, err)

	var decoded struct {
		ConversationID string           `json:"conversationId"`
		Messages       []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, model.StellarBotID, decoded.ConversationID)
	require.Len(t, decoded.Messages, 3)
	assert.Equal(t, "oi", decoded.Messages[0]["content"])
	assert.Equal(t, "user", decoded.Messages[0]["role"])
}

func TestExport_Empty(t *testing.T) {
	tr := NewTranscript("c1", "Empty", nil)
	for _, e := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter()} {
		_, err := e.Export(tr)
		assert.True(t, errors.Is(err, ErrEmptyTranscript))
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"md", ".md"},
		{"Markdown", ".md"},
		{".json", ".json"},
	}
	for _, tc := range tests {
		e, err := ForFormat(tc.format, nil)
		require.NoError(t, err, tc.format)
		assert.Equal(t, tc.ext, e.FileExtension())
	}

	_, err := ForFormat("html", nil)
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := ToFile(sampleTranscript(), NewJSONExporter(), &Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "conversation_Stellar_Conversational_Assistant_20250314_092653.json", filepath.Base(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "conversation"},
		{"a/b:c", "a-b-c"},
		{"hello world", "hello_world"},
		{"tab\there", "tab_here"},
		{"bell\x07", "bell-"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, sanitizeFilename(tc.in), tc.in)
	}
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: b"`, escapeYAML("a: b"))
	assert.Equal(t, `"say \"hi\""`, escapeYAML(`say "hi"`))
	assert.Equal(t, `""`, escapeYAML(""))
}
