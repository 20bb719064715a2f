// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backendchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
	"github.com/stellarchat/stellarchat-tui/internal/model"
)

// DefaultPendingTimeout is how long a message may wait for confirmation.
const DefaultPendingTimeout = 5 * time.Second

var (
	// ErrDisabled is returned by Send on a disabled session.
	ErrDisabled = errors.New("chat session disabled")

	// ErrEmptyMessage is returned by Send for blank content.
	ErrEmptyMessage = errors.New("message is empty")
)

// Backend is the subset of the REST client a session needs.
type Backend interface {
	GetMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationID, content string) (model.Message, error)
}

// Option configures a Session.
type Option func(*Session)

// WithEnabled turns the session on or off. A disabled session ignores Load
// and Send.
func WithEnabled(enabled bool) Option {
	return func(s *Session) { s.enabled = enabled }
}

// WithFallbackToAI controls whether a failed send streams an AI reply.
func WithFallbackToAI(fallback bool) Option {
	return func(s *Session) { s.fallbackToAI = fallback }
}

// WithPendingTimeout sets the confirmation timeout.
func WithPendingTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pendingTimeout = d
		}
	}
}

// WithCompleter sets the streamer used for AI fallback.
func WithCompleter(c completion.Streamer) Option {
	return func(s *Session) { s.completer = c }
}

// WithOnChange registers a callback invoked after every state change. It
// runs without the session lock held, possibly on a timer goroutine.
func WithOnChange(fn func()) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = logging.OrNop(l) }
}

// Session is the delivery state of one conversation. It is safe for
// concurrent use.
type Session struct {
	conversationID string
	backend        Backend
	enabled        bool
	fallbackToAI   bool
	pendingTimeout time.Duration
	completer      completion.Streamer
	onChange       func()
	logger         *zap.Logger

	mu               sync.Mutex
	messages         []model.Message
	loading          bool
	err              string
	backendAvailable bool
	pending          map[string]*time.Timer
	closed           bool
}

// New creates a session for conversationID. backend may be nil, which
// behaves like an unreachable backend.
func New(conversationID string, backend Backend, opts ...Option) *Session {
	s := &Session{
		conversationID: conversationID,
		backend:        backend,
		enabled:        true,
		fallbackToAI:   true,
		pendingTimeout: DefaultPendingTimeout,
		logger:         zap.NewNop(),
		pending:        make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("conversation_id", conversationID))
	return s
}

var errNoBackend = errors.New("no backend configured")

// ErrAIUnavailable is the user-facing error when neither the backend nor the
// AI fallback produced a reply.
const ErrAIUnavailable = "AI assistant unavailable"

// =============================================================================
// OPERATIONS
// =============================================================================

// Load replaces the messages with the backend's history. When the backend
// cannot be reached the session starts with an empty history.
func (s *Session) Load(ctx context.Context) {
	if !s.enabled {
		return
	}

	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()

	var (
		msgs []model.Message
		err  = errNoBackend
	)
	if s.backend != nil {
		msgs, err = s.backend.GetMessages(ctx, s.conversationID)
	}

	s.mu.Lock()
	if err == nil {
		s.messages = msgs
		s.backendAvailable = true
	} else {
		s.logger.Info("backend API not available for messages, starting fresh", zap.Error(err))
		s.backendAvailable = false
		s.messages = nil
	}
	s.mu.Unlock()
	s.notify()
}

// Retry reloads the history.
func (s *Session) Retry(ctx context.Context) {
	s.Load(ctx)
}

// ClearError clears the user-facing error.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	s.notify()
}

// Send shows content immediately and delivers it to the backend. It blocks
// until the backend (or the AI fallback) has answered and returns the
// delivery error, if any. The pending timer runs independently of ctx.
func (s *Session) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if !s.enabled {
		return ErrDisabled
	}

	msg := model.NewUserMessage(s.conversationID, content)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrDisabled
	}
	s.err = ""
	s.messages = append(s.messages, msg)
	id := msg.ID
	s.pending[id] = time.AfterFunc(s.pendingTimeout, func() { s.expire(id) })
	s.loading = true
	s.mu.Unlock()
	s.notify()

	var (
		reply model.Message
		err   = errNoBackend
	)
	if s.backend != nil {
		reply, err = s.backend.SendMessage(ctx, s.conversationID, content)
	}

	if err == nil {
		s.mu.Lock()
		s.resolveLocked(id)
		s.messages = append(s.messages, reply)
		s.backendAvailable = true
		s.loading = false
		s.mu.Unlock()
		s.notify()
		return nil
	}

	s.logger.Info("backend message failed", zap.Error(err))
	s.mu.Lock()
	s.backendAvailable = false
	s.mu.Unlock()

	if s.fallbackToAI && s.completer != nil {
		err = s.streamReply(ctx, id)
	} else {
		err = fmt.Errorf("send message: %w", err)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.notify()
	return err
}

// streamReply asks the completer for a reply to the conversation so far.
// The first token confirms the pending message.
func (s *Session) streamReply(ctx context.Context, pendingID string) error {
	reply := model.NewStreamingReply(s.conversationID)

	s.mu.Lock()
	turns := turnsFrom(s.messages)
	s.messages = append(s.messages, reply)
	s.mu.Unlock()
	s.notify()

	out, err := s.completer.Stream(ctx, turns, func(tok string) {
		s.mu.Lock()
		s.resolveLocked(pendingID)
		if i := s.indexLocked(reply.ID); i >= 0 {
			s.messages[i].Content += tok
		}
		s.mu.Unlock()
		s.notify()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(reply.ID)
	if i < 0 {
		return err
	}
	if err != nil {
		s.logger.Warn("AI fallback failed", zap.Error(err))
		s.err = ErrAIUnavailable
		if strings.TrimSpace(s.messages[i].Content) == "" {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return fmt.Errorf("AI fallback: %w", err)
		}
		s.messages[i].Streaming = false
		return fmt.Errorf("AI fallback: %w", err)
	}
	s.messages[i].Content = out
	s.messages[i].Timestamp = time.Now()
	s.messages[i].Streaming = false
	s.resolveLocked(pendingID)
	return nil
}

// expire runs on the pending timer goroutine.
func (s *Session) expire(id string) {
	s.mu.Lock()
	if _, ok := s.pending[id]; !ok || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.messages = append(s.messages, model.NewTimeoutErrorMessage(s.conversationID))
	s.mu.Unlock()

	s.logger.Warn("message not confirmed in time", zap.String("message_id", id), zap.Duration("timeout", s.pendingTimeout))
	s.notify()
}

// resolveLocked cancels the pending timer of id, if still armed.
func (s *Session) resolveLocked(id string) {
	if t, ok := s.pending[id]; ok {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *Session) indexLocked(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Close stops every pending timer. Timeouts no longer fire afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// turnsFrom converts history into completion context, leaving out error
// bubbles and empty messages.
func turnsFrom(msgs []model.Message) []completion.Turn {
	turns := make([]completion.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.IsError() || m.IsEmpty() {
			continue
		}
		turns = append(turns, completion.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ConversationID returns the conversation this session delivers to.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Messages returns a copy of the current messages.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether a send is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the user-facing error, or "".
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// BackendAvailable reports whether the last backend call succeeded.
func (s *Session) BackendAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backendAvailable
}

// PendingCount returns how many messages await confirmation.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Enabled reports whether the session accepts messages.
func (s *Session) Enabled() bool {
	return s.enabled
}
