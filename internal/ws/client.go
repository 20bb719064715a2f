// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/logging"
	"github.com/stellarchat/stellarchat-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultURL is the WebSocket backend when none is configured.
	DefaultURL = "ws://localhost:8001"

	DefaultMaxReconnectAttempts = 3
	DefaultBaseDelay            = time.Second
	DefaultMaxDelay             = 10 * time.Second

	// DevelopmentEnv always auto-connects.
	DevelopmentEnv = "development"

	// closeAbnormal is reported when the connection drops without a close frame.
	closeAbnormal = websocket.CloseAbnormalClosure

	writeTimeout = 5 * time.Second
)

// ErrNotConnected is returned when a frame is sent without an open socket.
var ErrNotConnected = errors.New("websocket not connected")

// =============================================================================
// STATUS
// =============================================================================

// Status is the connection state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Client. Zero values get defaults.
type Options struct {
	URL            string
	ConversationID string

	OnMessage      func(Envelope)
	OnTyping       func(isTyping bool, conversationID string)
	OnStatusChange func(Status)

	MaxReconnectAttempts int
	BaseDelay            time.Duration
	MaxDelay             time.Duration

	Dialer *websocket.Dialer
	Logger *zap.Logger
}

// ShouldAutoConnect reports whether a client should connect on start:
// when a non-default URL is configured, or in development.
func ShouldAutoConnect(url, env string) bool {
	return (url != "" && url != DefaultURL) || env == DevelopmentEnv
}

// Backoff returns the delay before reconnect attempt n (0-based):
// min(base*2^n, max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return max
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a reconnecting WebSocket client. It is safe for concurrent use.
type Client struct {
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	dialing        bool
	status         Status
	lastMessage    *Envelope
	attempts       int
	reconnectTimer *time.Timer
	loggedAttempt  bool
	gen            uint64
	closed         bool
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		logger: logging.OrNop(opts.Logger).With(zap.String("url", opts.URL)),
		ctx:    ctx,
		cancel: cancel,
		status: StatusDisconnected,
	}
}

// URL returns the endpoint the client connects to.
func (c *Client) URL() string {
	return c.opts.URL
}

// ConversationID returns the conversation joined on connect, if any.
func (c *Client) ConversationID() string {
	return c.opts.ConversationID
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastMessage returns the most recent envelope received, or nil.
func (c *Client) LastMessage() *Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMessage == nil {
		return nil
	}
	env := *c.lastMessage
	return &env
}

// Attempts returns how many reconnects have been made since the last
// successful connection.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect starts connecting in the background. It does nothing when the
// socket is open or a dial is already in flight.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.conn != nil || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	c.status = StatusConnecting
	if !c.loggedAttempt {
		c.logger.Info("attempting WebSocket connection")
		c.loggedAttempt = true
	}
	gen := c.gen
	c.wg.Add(1)
	c.mu.Unlock()

	go c.dial(gen)
}

// Reconnect resets the attempt counter and connects again. Used when the
// user asks for a retry after the client gave up.
func (c *Client) Reconnect() {
	c.mu.Lock()
	c.attempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()
	c.Connect()
}

// dial reports StatusConnecting from its own goroutine so Connect never
// blocks on a slow status callback.
func (c *Client) dial(gen uint64) {
	defer c.wg.Done()

	c.mu.Lock()
	stale := gen != c.gen || c.closed
	c.mu.Unlock()
	if !stale {
		c.notifyStatus(StatusConnecting)
	}

	conn, _, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, nil)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.dialing = false
	if err != nil {
		c.status = StatusError
		c.mu.Unlock()
		c.logger.Info("WebSocket connection failed - this is normal if your backend isn't running yet", zap.Error(err))
		c.notifyStatus(StatusError)
		c.handleClose(gen, closeAbnormal, "")
		return
	}

	c.conn = conn
	c.status = StatusConnected
	c.attempts = 0
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("WebSocket connected successfully")
	c.notifyStatus(StatusConnected)

	if c.opts.ConversationID != "" {
		join, _ := NewEnvelope(TypeJoin, c.opts.ConversationID, nil)
		if !c.Send(join) {
			c.logger.Warn("failed to send join", zap.String("conversation_id", c.opts.ConversationID))
		}
	}

	go c.readLoop(gen, conn)
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeAbnormal, ""
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code, reason = closeErr.Code, closeErr.Text
			}
			conn.Close()
			c.handleClose(gen, code, reason)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("failed to parse WebSocket message", zap.Error(err))
			continue
		}

		c.mu.Lock()
		stale := gen != c.gen
		if !stale {
			c.lastMessage = &env
		}
		c.mu.Unlock()
		if stale {
			return
		}

		if c.opts.OnMessage != nil {
			c.opts.OnMessage(env)
		}
		if env.Type == TypeTyping && env.ConversationID != "" && c.opts.OnTyping != nil {
			td, err := env.Typing()
			if err != nil {
				c.logger.Warn("ignoring typing envelope", zap.Error(err))
				continue
			}
			c.opts.OnTyping(td.IsTyping, env.ConversationID)
		}
	}
}

// handleClose moves to disconnected and schedules a reconnect unless the
// close was normal or the attempts are used up.
func (c *Client) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = StatusDisconnected

	if code == websocket.CloseNormalClosure {
		c.mu.Unlock()
		c.logger.Info("WebSocket disconnected normally")
		c.notifyStatus(StatusDisconnected)
		return
	}

	c.logger.Info("WebSocket disconnected unexpectedly", zap.Int("code", code), zap.String("reason", reason))

	if c.attempts >= c.opts.MaxReconnectAttempts {
		c.mu.Unlock()
		c.logger.Warn("WebSocket max reconnection attempts reached, running in offline mode",
			zap.Int("attempts", c.opts.MaxReconnectAttempts))
		c.notifyStatus(StatusDisconnected)
		return
	}

	delay := Backoff(c.attempts, c.opts.BaseDelay, c.opts.MaxDelay)
	c.logger.Info("retrying WebSocket connection",
		zap.Duration("delay", delay),
		zap.Int("attempt", c.attempts+1),
		zap.Int("max_attempts", c.opts.MaxReconnectAttempts))

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if gen != c.gen || c.closed {
			c.mu.Unlock()
			return
		}
		c.attempts++
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.Connect()
	})
	c.mu.Unlock()

	c.notifyStatus(StatusDisconnected)
}

// Disconnect closes the socket with code 1000 and cancels any scheduled
// reconnect. Connect may be called again afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.dialing = false
	changed := c.status != StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Manual disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		conn.Close()
	}
	if changed {
		c.notifyStatus(StatusDisconnected)
	}
}

// Close disconnects, aborts an in-flight dial and waits for the client's
// goroutines to exit. It must not be called from a callback.
func (c *Client) Close() {
	c.Disconnect()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Send stamps env with the current time and writes it. It returns false
// when the socket is not open or the write fails.
func (c *Client) Send(env Envelope) bool {
	return c.send(env) == nil
}

func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	env.Timestamp = model.FormatTimestamp(time.Now())
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// SendTyping tells the backend whether the user is typing. It is a no-op
// without a conversation id or an open socket.
func (c *Client) SendTyping(isTyping bool) bool {
	if c.opts.ConversationID == "" {
		return false
	}
	env, err := NewEnvelope(TypeTyping, c.opts.ConversationID, TypingData{IsTyping: isTyping})
	if err != nil {
		return false
	}
	return c.Send(env)
}

func (c *Client) notifyStatus(s Status) {
	if c.opts.OnStatusChange != nil {
		c.opts.OnStatusChange(s)
	}
}
