// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the backend address when none is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 4 * 1024 * 1024
)

// Endpoint paths.
const (
	EndpointChat          = "/api/chat"
	EndpointMessages      = "/api/messages"
	EndpointConversations = "/api/conversations"
	EndpointBot           = "/api/bot"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

type createConversationRequest struct {
	BotType   string `json:"botType"`
	Timestamp string `json:"timestamp"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetConversations returns every conversation the backend knows about.
func (c *Client) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	if err := c.do(ctx, http.MethodGet, EndpointConversations, nil, &out); err != nil {
		return nil, err
	}
	for i, conv := range out {
		if err := conv.Validate(); err != nil {
			return nil, invalidResponse(EndpointConversations, i, err)
		}
	}
	return out, nil
}

// GetMessages returns the messages of one conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	path := EndpointMessages + "/" + url.PathEscape(conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].ConversationID == "" {
			out[i].ConversationID = conversationID
		}
		if err := out[i].Validate(); err != nil {
			return nil, invalidResponse(EndpointMessages, i, err)
		}
	}
	return out, nil
}

// SendMessage posts content to the bot and returns its reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	body := sendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
		Timestamp:      model.FormatTimestamp(c.now()),
	}
	var reply model.Message
	if err := c.do(ctx, http.MethodPost, EndpointBot, body, &reply); err != nil {
		return model.Message{}, err
	}
	if reply.ConversationID == "" {
		reply.ConversationID = conversationID
	}
	if err := reply.Validate(); err != nil {
		return model.Message{}, invalidResponse(EndpointBot, 0, err)
	}
	return reply, nil
}

// CreateConversation asks the backend for a new conversation with a bot.
func (c *Client) CreateConversation(ctx context.Context, botType string) (model.Conversation, error) {
	body := createConversationRequest{
		BotType:   botType,
		Timestamp: model.FormatTimestamp(c.now()),
	}
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, EndpointConversations, body, &conv); err != nil {
		return model.Conversation{}, err
	}
	if err := conv.Validate(); err != nil {
		return model.Conversation{}, invalidResponse(EndpointConversations, 0, err)
	}
	return conv, nil
}

// do sends one JSON request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return &Error{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Endpoint:   endpoint,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
