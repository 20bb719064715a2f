// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarchat/stellarchat-tui/internal/model"
)

func TestGetConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/conversations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`[{"id":"stellar-bot","title":"Stellar Conversational Assistant","unreadCount":1,"botType":"stellar","isActive":true}]`))
	}))
	defer server.Close()

	convs, err := NewClient(server.URL).GetConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, model.StellarBotID, convs[0].ID)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.True(t, convs[0].IsActive)
}

func TestGetMessages_EscapesID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages/stellar-bot", r.URL.Path)
		w.Write([]byte(`[{"id":"m1","content":"Olá","role":"assistant","timestamp":"2025-03-10T12:00:00Z","conversationId":"stellar-bot"}]`))
	}))
	defer server.Close()

	msgs, err := NewClient(server.URL).GetMessages(context.Background(), model.StellarBotID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Olá", msgs[0].Content)
}

func TestSendMessage_Body(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bot", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"bot-1","content":"Hi!","role":"assistant","timestamp":"2025-03-10T12:00:01Z"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	c.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }

	reply, err := c.SendMessage(context.Background(), model.StellarBotID, "Hello")
	require.NoError(t, err)

	assert.Equal(t, model.StellarBotID, got.ConversationID)
	assert.Equal(t, "Hello", got.Content)
	assert.Equal(t, "2025-03-10T12:00:00.000Z", got.Timestamp)
	assert.Equal(t, "Hi!", reply.Content)
	assert.Equal(t, model.StellarBotID, reply.ConversationID, "missing conversationId is filled in")
}

func TestSendMessage_Empty(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").SendMessage(context.Background(), "c", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestCreateConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body createConversationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "stellar", body.BotType)
		fmt.Fprintf(w, `{"id":"conv-9","title":"Stellar Assistant","unreadCount":0,"botType":%q,"isActive":true}`, body.BotType)
	}))
	defer server.Close()

	conv, err := NewClient(server.URL).CreateConversation(context.Background(), "stellar")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", conv.ID)
}

func TestHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetConversations(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Status)
	assert.Equal(t, "API request failed: 503 Service Unavailable", err.Error())
	assert.False(t, IsNetworkError(err))
}

func TestDecodeError_IsNotNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetConversations(context.Background())
	require.Error(t, err)
	assert.False(t, IsNetworkError(err))
}

func TestRefusedConnection_IsNetwork(t *testing.T) {
	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient("http://" + addr).GetConversations(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err), "refused connection should be a network error: %v", err)
}

func TestTimeout_IsNetwork(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(server.URL).WithTimeout(50 * time.Millisecond)
	_, err := c.GetConversations(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestIsNetworkError_Nil(t *testing.T) {
	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(errors.New("plain")))
}

func TestInvalidPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{
			name: "conversation without title",
			body: `[{"id":"c1","unreadCount":0}]`,
			call: func(c *Client) error { _, err := c.GetConversations(context.Background()); return err },
		},
		{
			name: "negative unread count",
			body: `[{"id":"c1","title":"One","unreadCount":-2}]`,
			call: func(c *Client) error { _, err := c.GetConversations(context.Background()); return err },
		},
		{
			name: "message with unknown role",
			body: `[{"id":"m1","content":"x","role":"system","timestamp":"2025-03-10T12:00:00Z"}]`,
			call: func(c *Client) error { _, err := c.GetMessages(context.Background(), "c1"); return err },
		},
		{
			name: "reply without id",
			body: `{"content":"Hi!","role":"assistant","timestamp":"2025-03-10T12:00:01Z"}`,
			call: func(c *Client) error { _, err := c.SendMessage(context.Background(), "c1", "hi"); return err },
		},
		{
			name: "created conversation without id",
			body: `{"title":"Stellar Assistant"}`,
			call: func(c *Client) error { _, err := c.CreateConversation(context.Background(), "stellar"); return err },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			err := tc.call(NewClient(server.URL))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResponse), err)
			assert.False(t, IsNetworkError(err))
		})
	}
}

func TestGetMessages_FillsConversationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"m1","content":"Olá","role":"user","timestamp":"2025-03-10T12:00:00Z"}]`))
	}))
	defer server.Close()

	msgs, err := NewClient(server.URL).GetMessages(context.Background(), "c7")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c7", msgs[0].ConversationID)
}
