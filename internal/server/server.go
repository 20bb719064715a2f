// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/completion"
	"github.com/stellarchat/stellarchat-tui/internal/config"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default listen address.
	DefaultListen = ":3000"

	// MaxRequestBodySize is the default request body limit (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxMessageChars is the default limit for a single message.
	MaxMessageChars = 8000

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// CONFIG
// ============================================================================

// Config holds everything the proxy needs.
type Config struct {
	Listen          string
	AllowedOrigins  []string
	RateLimit       float64
	Burst           int
	MaxBodyBytes    int64
	MaxMessageChars int

	OpenAIKey     string
	OpenAIBaseURL string
	Settings      completion.Settings
}

// FromConfig extracts the proxy configuration from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Listen:          cfg.Server.Listen,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
		Burst:           cfg.Server.Burst,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		MaxMessageChars: cfg.Server.MaxMessageChars,
		OpenAIKey:       cfg.Completion.OpenAIKey,
		OpenAIBaseURL:   cfg.Completion.OpenAIBaseURL,
		Settings: completion.Settings{
			Model:        cfg.Completion.Model,
			Temperature:  float32(cfg.Completion.Temperature),
			MaxTokens:    cfg.Completion.MaxTokens,
			SystemPrompt: cfg.Completion.SystemPrompt,
		},
	}
}

func (c *Config) fillDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = MaxRequestBodySize
	}
	if c.MaxMessageChars <= 0 {
		c.MaxMessageChars = MaxMessageChars
	}
	def := completion.DefaultSettings()
	if c.Settings.Model == "" {
		c.Settings.Model = def.Model
	}
	if c.Settings.MaxTokens <= 0 {
		c.Settings.MaxTokens = def.MaxTokens
	}
	if c.Settings.SystemPrompt == "" {
		c.Settings.SystemPrompt = config.DefaultSystemPrompt
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the chat completion proxy.
type Server struct {
	cfg      Config
	router   *chi.Mux
	limiter  *RateLimiter
	validate *validator.Validate
	logger   *zap.Logger
	started  time.Time

	mu       sync.RWMutex
	client   *openai.Client
	settings completion.Settings
}

// New creates a Server. A missing API key is not an error: every chat
// request then fails with 500 until Update supplies one.
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	cfg.fillDefaults()
	if cfg.RateLimit < 0 || cfg.Burst < 0 {
		return nil, fmt.Errorf("invalid rate limit %v/%d", cfg.RateLimit, cfg.Burst)
	}

	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logging.OrNop(logger).Named("server"),
		started:  time.Now(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.Burst)
	}
	s.Update(cfg)
	s.routes()
	return s, nil
}

// Update swaps the model settings and OpenAI credentials. Requests already
// streaming keep the client they started with.
func (s *Server) Update(cfg Config) {
	cfg.fillDefaults()

	var client *openai.Client
	if strings.TrimSpace(cfg.OpenAIKey) != "" {
		oc := openai.DefaultConfig(cfg.OpenAIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		client = openai.NewClientWithConfig(oc)
	}

	s.mu.Lock()
	s.client = client
	s.settings = cfg.Settings
	s.mu.Unlock()

	s.logger.Info("settings applied",
		zap.String("model", cfg.Settings.Model),
		zap.Bool("openai_configured", client != nil),
	)
}

func (s *Server) current() (*openai.Client, completion.Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.settings
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() {
	s.router.Use(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cfg.AllowedOrigins),
	)
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.With(BodyLimitMiddleware(s.cfg.MaxBodyBytes)).Post("/api/chat", s.handleChat)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ============================================================================
// CHAT HANDLER
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []completion.Turn `json:"messages" validate:"required,min=1,dive"`
}

func (s *Server) decodeChat(r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return req, err
	}
	if len(req.Messages) > MaxMessageCount {
		return req, fmt.Errorf("too many messages: %d (max %d)", len(req.Messages), MaxMessageCount)
	}
	for i, m := range req.Messages {
		if n := utf8.RuneCountInString(m.Content); n > s.cfg.MaxMessageChars {
			return req, fmt.Errorf("message %d too long: %d characters (max %d)", i, n, s.cfg.MaxMessageChars)
		}
	}
	return req, nil
}

// handleChat handles POST /api/chat. Failures before the first byte answer
// 500; failures after it are reported in-band as an error part.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeChat(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Info("rejected chat request", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client, settings := s.current()
	if client == nil {
		s.logger.Error("chat API error", zap.Error(completion.ErrNotConfigured))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stream, err := client.CreateChatCompletionStream(r.Context(), settings.ChatRequest(req.Messages))
	if err != nil {
		s.logger.Error("chat API error", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(completion.HeaderName, completion.HeaderValue)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	dw := completion.NewWriter(w)
	_ = dw.StartStep("msg-" + uuid.NewString())
	flush()

	reason := "stop"
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if r.Context().Err() == nil {
				s.logger.Warn("chat stream failed", zap.Error(err))
				_ = dw.Error(err.Error())
				flush()
			}
			reason = "error"
			break
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.FinishReason != "" {
			reason = string(choice.FinishReason)
		}
		if choice.Delta.Content == "" {
			continue
		}
		if err := dw.Text(choice.Delta.Content); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
			return
		}
		flush()
	}

	// The streaming API does not report token usage.
	usage := &completion.Usage{}
	_ = dw.FinishStep(completion.Finish{FinishReason: reason, Usage: usage})
	_ = dw.FinishMessage(completion.Finish{FinishReason: reason, Usage: usage})
	flush()
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, settings := s.current()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Model:   settings.Model,
		Version: Version,
		Uptime:  int64(time.Since(s.started).Seconds()),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", zap.String("addr", ln.Addr().String()), zap.String("version", Version))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
