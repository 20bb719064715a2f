// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversations

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarchat/stellarchat-tui/internal/api"
	"github.com/stellarchat/stellarchat-tui/internal/model"
)

type fakeBackend struct {
	convs     []model.Conversation
	listErr   error
	created   model.Conversation
	createErr error
	calls     int
}

func (f *fakeBackend) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	f.calls++
	return f.convs, f.listErr
}

func (f *fakeBackend) CreateConversation(ctx context.Context, botType string) (model.Conversation, error) {
	return f.created, f.createErr
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(b Backend) *Service {
	return NewService(b, nil).WithClock(func() time.Time { return fixedNow })
}

func networkErr() error {
	return &url.Error{Op: "Get", URL: "http://localhost:8000/api/conversations", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
}

func TestLoad_BackendSuccess(t *testing.T) {
	b := &fakeBackend{convs: []model.Conversation{{ID: "c1", Title: "One"}}}
	s := newTestService(b)

	assert.True(t, s.Loading(), "service starts in loading state")
	s.Load(context.Background())

	assert.False(t, s.Loading())
	assert.True(t, s.BackendAvailable())
	assert.Empty(t, s.Err())
	require.Len(t, s.Conversations(), 1)
	assert.Equal(t, "c1", s.Conversations()[0].ID)
}

func TestLoad_NetworkFailureUsesMockWithoutError(t *testing.T) {
	s := newTestService(&fakeBackend{listErr: networkErr()})
	s.Load(context.Background())

	assert.False(t, s.BackendAvailable())
	assert.Empty(t, s.Err(), "network failures stay silent")
	convs := s.Conversations()
	require.Len(t, convs, 11)
	assert.Equal(t, model.StellarBotID, convs[0].ID)
}

func TestLoad_HTTPFailureSetsError(t *testing.T) {
	s := newTestService(&fakeBackend{listErr: &api.Error{Status: 500, StatusText: "Internal Server Error"}})
	s.Load(context.Background())

	assert.False(t, s.BackendAvailable())
	assert.Equal(t, "Backend temporarily unavailable", s.Err())
	assert.Len(t, s.Conversations(), 11)
}

func TestLoad_NoBackend(t *testing.T) {
	s := newTestService(nil)
	s.Load(context.Background())

	assert.Empty(t, s.Err())
	assert.Len(t, s.Conversations(), 11)
}

func TestRefresh_ClearsError(t *testing.T) {
	b := &fakeBackend{listErr: &api.Error{Status: 502, StatusText: "Bad Gateway"}}
	s := newTestService(b)
	s.Load(context.Background())
	require.NotEmpty(t, s.Err())

	b.listErr = nil
	b.convs = []model.Conversation{{ID: "c1", Title: "One"}}
	s.Refresh(context.Background())

	assert.Empty(t, s.Err())
	assert.True(t, s.BackendAvailable())
	assert.Equal(t, 2, b.calls)
}

func TestMockConversations(t *testing.T) {
	convs := MockConversations(fixedNow)
	require.Len(t, convs, 11)

	bot := convs[0]
	assert.Equal(t, model.StellarBotTitle, bot.Title)
	assert.Equal(t, 1, bot.UnreadCount)
	assert.Equal(t, "Olá! Como posso ajudá-lo com a rede Stellar hoje?", bot.LastMessage)
	assert.Equal(t, fixedNow, *bot.LastMessageTime)

	for i, c := range convs[1:] {
		assert.Equal(t, fmt.Sprintf("user-%d", i+1), c.ID)
		assert.False(t, c.Functional())
	}
	assert.Equal(t, fixedNow.Add(-15*time.Minute), *convs[1].LastMessageTime)
	assert.Equal(t, fixedNow.Add(-240*time.Minute), *convs[10].LastMessageTime)
}

func TestCreate_FallsBackToMock(t *testing.T) {
	s := newTestService(&fakeBackend{listErr: networkErr()})
	s.Load(context.Background())

	id := s.Create(context.Background(), "stellar")

	assert.Equal(t, fmt.Sprintf("mock-%d", fixedNow.UnixMilli()), id)
	convs := s.Conversations()
	require.Len(t, convs, 12)
	first := convs[0]
	assert.Equal(t, id, first.ID)
	assert.Equal(t, "Stellar Assistant", first.Title)
	assert.Equal(t, "Hello! How can I help you today?", first.LastMessage)
	assert.Equal(t, 0, first.UnreadCount)
	assert.True(t, first.IsActive)
}

func TestCreate_UsesBackendWhenAvailable(t *testing.T) {
	b := &fakeBackend{
		convs:   []model.Conversation{{ID: "c1", Title: "One"}},
		created: model.Conversation{ID: "srv-7", Title: "Server Bot"},
	}
	s := newTestService(b)
	s.Load(context.Background())

	id := s.Create(context.Background(), "stellar")
	assert.Equal(t, "srv-7", id)
	assert.Equal(t, "srv-7", s.Conversations()[0].ID)
	assert.True(t, s.BackendAvailable())
}

func TestCreate_BackendFailureMarksUnavailable(t *testing.T) {
	b := &fakeBackend{
		convs:     []model.Conversation{{ID: "c1", Title: "One"}},
		createErr: errors.New("boom"),
	}
	s := newTestService(b)
	s.Load(context.Background())

	id := s.Create(context.Background(), "support")
	assert.Contains(t, id, "mock-")
	assert.False(t, s.BackendAvailable())
	assert.Equal(t, "Support Assistant", s.Conversations()[0].Title)
}

func TestTitleFor(t *testing.T) {
	tests := map[string]string{
		"stellar":     "Stellar Assistant",
		"openAI":      "OpenAI Assistant",
		"stellar bot": "Stellar bot Assistant",
		"éclair":      "Éclair Assistant",
		"":            " Assistant",
	}
	for in, want := range tests {
		if got := TitleFor(in); got != want {
			t.Errorf("TitleFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilter(t *testing.T) {
	s := newTestService(nil)
	s.Load(context.Background())

	tests := []struct {
		query string
		want  int
	}{
		{"", 11},
		{"ana", 2},       // "Ana Silva" and "Juliana Rocha"
		{"STELLAR", 1},   // title match, case-insensitive
		{"combinado", 1}, // last message match
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := len(s.Filter(tt.query)); got != tt.want {
			t.Errorf("Filter(%q) returned %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestConversations_ReturnsCopy(t *testing.T) {
	s := newTestService(nil)
	s.Load(context.Background())

	convs := s.Conversations()
	convs[0].Title = "changed"
	assert.Equal(t, model.StellarBotTitle, s.Conversations()[0].Title)
}

func TestLoad_MalformedPayloadSetsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"","title":"Broken"}]`))
	}))
	defer server.Close()

	s := newTestService(api.NewClient(server.URL))
	s.Load(context.Background())

	assert.False(t, s.BackendAvailable())
	assert.Equal(t, ErrBackendUnavailable, s.Err())
	assert.Len(t, s.Conversations(), 11)
}
