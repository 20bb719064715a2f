// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Settings are the model parameters shared by Direct and the proxy.
type Settings struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// DefaultSettings returns gpt-4o-mini at temperature 0.7 with 500 tokens.
func DefaultSettings() Settings {
	return Settings{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   500,
	}
}

// ChatRequest builds the streaming request for turns, with the system
// prompt first.
func (s Settings) ChatRequest(turns []Turn) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if s.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: s.SystemPrompt})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		case "system":
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       s.Model,
		Messages:    msgs,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Stream:      true,
	}
}

// Direct streams completions from the OpenAI API.
type Direct struct {
	client   *openai.Client
	settings Settings
}

// NewDirect creates a Direct client. baseURL may be empty for the public API.
func NewDirect(apiKey, baseURL string, settings Settings) (*Direct, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Direct{client: openai.NewClientWithConfig(cfg), settings: settings}, nil
}

// Stream implements Streamer.
func (d *Direct) Stream(ctx context.Context, turns []Turn, onToken func(string)) (string, error) {
	return StreamOpenAI(ctx, d.client, d.settings.ChatRequest(turns), onToken)
}

// StreamOpenAI runs a streaming chat completion and forwards each content
// delta to onToken.
func StreamOpenAI(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest, onToken func(string)) (string, error) {
	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat stream init failed: %w", err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out.String(), nil
		}
		if err != nil {
			return out.String(), wrapPartial(out.String(), err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		chunk := response.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		out.WriteString(chunk)
		if onToken != nil {
			onToken(chunk)
		}
	}
}
