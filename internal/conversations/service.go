// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stellarchat/stellarchat-tui/internal/api"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
	"github.com/stellarchat/stellarchat-tui/internal/model"
)

// ErrBackendUnavailable is the user-facing error set when the backend
// answered but could not serve the list.
const ErrBackendUnavailable = "Backend temporarily unavailable"

var errNoBackend = errors.New("no backend configured")

// MockGreeting is the last message of locally created conversations.
const MockGreeting = "Hello! How can I help you today?"

// Backend is the subset of the REST client the service needs.
type Backend interface {
	GetConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, botType string) (model.Conversation, error)
}

// Service holds the conversation list. It is safe for concurrent use.
type Service struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	mu               sync.RWMutex
	conversations    []model.Conversation
	loading          bool
	err              string
	backendAvailable bool
}

// NewService creates a service. backend may be nil, in which case the mock
// list is always used.
func NewService(backend Backend, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		logger:  logging.OrNop(logger),
		now:     time.Now,
		loading: true,
	}
}

// WithClock replaces the clock used for mock timestamps and ids.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load fetches the list from the backend, falling back to mock data.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	s.err = ""
	s.loading = true
	s.mu.Unlock()

	var (
		convs []model.Conversation
		err   error
	)
	if s.backend == nil {
		err = errNoBackend
	} else {
		convs, err = s.backend.GetConversations(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err == nil {
		s.conversations = convs
		s.backendAvailable = true
		s.logger.Info("backend API connected", zap.Int("conversations", len(convs)))
		return
	}

	s.logger.Info("backend API not available, using mock data", zap.Error(err))
	s.backendAvailable = false
	s.conversations = MockConversations(s.now())
	if !api.IsNetworkError(err) && !errors.Is(err, errNoBackend) {
		s.err = ErrBackendUnavailable
	}
}

// Refresh reloads the list.
func (s *Service) Refresh(ctx context.Context) {
	s.Load(ctx)
}

// Create starts a conversation with a bot of the given type and returns its
// id. The backend is tried first when it was last seen available; otherwise,
// or when that fails, a local conversation is created.
func (s *Service) Create(ctx context.Context, botType string) string {
	s.mu.RLock()
	available := s.backendAvailable
	s.mu.RUnlock()

	if available && s.backend != nil {
		conv, err := s.backend.CreateConversation(ctx, botType)
		if err == nil {
			s.prepend(conv)
			return conv.ID
		}
		s.logger.Error("failed to create conversation via API", zap.String("bot_type", botType), zap.Error(err))
		s.mu.Lock()
		s.backendAvailable = false
		s.mu.Unlock()
	}

	now := s.now()
	conv := model.Conversation{
		ID:              fmt.Sprintf("mock-%d", now.UnixMilli()),
		Title:           TitleFor(botType),
		LastMessage:     MockGreeting,
		LastMessageTime: &now,
		UnreadCount:     0,
		BotType:         botType,
		IsActive:        true,
	}
	s.prepend(conv)
	return conv.ID
}

func (s *Service) prepend(conv model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]model.Conversation{conv}, s.conversations...)
}

// TitleFor builds the display title of a locally created bot conversation:
// the bot type with its first letter upper-cased, followed by "Assistant".
// The rest of the bot type is kept as is, so "stellar bot" becomes
// "Stellar bot Assistant".
func TitleFor(botType string) string {
	r, size := utf8.DecodeRuneInString(botType)
	if size == 0 {
		return " Assistant"
	}
	first := cases.Upper(language.Und).String(string(r))
	return first + botType[size:] + " Assistant"
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Conversations returns a copy of the current list.
func (s *Service) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Get returns the conversation with the given id.
func (s *Service) Get(id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Loading reports whether a load is in progress.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the user-facing error, or "".
func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// BackendAvailable reports whether the last backend call succeeded.
func (s *Service) BackendAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backendAvailable
}

// Filter returns the conversations whose title or last message contains
// query, ignoring case. An empty query returns everything.
func (s *Service) Filter(query string) []model.Conversation {
	return FilterConversations(s.Conversations(), query)
}

// FilterConversations applies the sidebar search to convs.
func FilterConversations(convs []model.Conversation, query string) []model.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return convs
	}
	var out []model.Conversation
	for _, c := range convs {
		if strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.LastMessage), q) {
			out = append(out, c)
		}
	}
	return out
}
