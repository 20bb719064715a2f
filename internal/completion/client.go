// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stellarchat/stellarchat-tui/internal/api"
)

// DefaultChatURL is the proxy served by "stellarchat serve".
const DefaultChatURL = "http://localhost:3000/api/chat"

type chatRequest struct {
	Messages []Turn `json:"messages"`
}

// Client streams completions from a data-stream endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a Client for url. An empty url uses DefaultChatURL.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultChatURL
	}
	return &Client{
		url: url,
		// No timeout for streaming - controlled via context
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithConnectTimeout bounds how long to wait for the response headers.
func (c *Client) WithConnectTimeout(d time.Duration) *Client {
	if d > 0 {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = d
		c.httpClient = &http.Client{Transport: tr}
	}
	return c
}

// URL returns the endpoint.
func (c *Client) URL() string {
	return c.url
}

// Stream implements Streamer.
func (c *Client) Stream(ctx context.Context, turns []Turn, onToken func(string)) (string, error) {
	body, err := json.Marshal(chatRequest{Messages: turns})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxPartSize))
		return "", &api.Error{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), Endpoint: c.url}
	}

	return c.processStream(ctx, resp.Body, onToken)
}

// processStream reads parts until the finish message or EOF.
func (c *Client) processStream(ctx context.Context, body io.Reader, onToken func(string)) (string, error) {
	reader := NewReader(body)
	var out strings.Builder

	for {
		select {
		case <-ctx.Done():
			return out.String(), wrapPartial(out.String(), ctx.Err())
		default:
		}

		part, err := reader.Next()
		if err == io.EOF {
			return out.String(), nil
		}
		if err != nil {
			return out.String(), wrapPartial(out.String(), err)
		}

		switch part.Code {
		case PartText:
			out.WriteString(part.Text)
			if onToken != nil && part.Text != "" {
				onToken(part.Text)
			}
		case PartError:
			return out.String(), wrapPartial(out.String(), &RemoteError{Message: part.Text})
		case PartFinishMessage:
			return out.String(), nil
		}
	}
}
