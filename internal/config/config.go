// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/stellarchat/stellarchat-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAPIURL is the REST backend used when nothing is configured.
	DefaultAPIURL = "http://localhost:8000"

	// DefaultWebSocketURL is the real-time backend used when nothing is configured.
	DefaultWebSocketURL = "ws://localhost:8001"

	// DefaultChatURL is the completion proxy served by "stellarchat serve".
	DefaultChatURL = "http://localhost:3000/api/chat"

	// DefaultModel is the hosted completion model.
	DefaultModel = "gpt-4o-mini"

	// EnvDevelopment enables WebSocket auto-connect against the default URL.
	EnvDevelopment = "development"

	// DefaultSystemPrompt is sent ahead of every proxied conversation.
	DefaultSystemPrompt = `You are a helpful AI assistant in a WhatsApp-like chat interface.

Key guidelines:
- Keep responses conversational and friendly, like chatting with a friend
- Use natural language and avoid overly formal responses
- Break longer responses into multiple shorter messages when appropriate
- You can help with various tasks: answering questions, providing information, having conversations, helping with problems
- If asked about connecting to external systems or APIs, explain that you're ready to integrate with backend services
- Be helpful, informative, and engaging
- Use emojis occasionally to make conversations more natural (but don't overuse them)

Remember: You're in a chat interface, so keep the tone casual and conversational.`
)

// ErrNoConfigFile is returned by LoadFromPath when the file does not exist.
var ErrNoConfigFile = errors.New("config file not found")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete stellarchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Env is the runtime environment ("development", "production").
	Env string `toml:"env" json:"env"`

	Backend    BackendConfig    `toml:"backend" json:"backend"`
	WebSocket  WebSocketConfig  `toml:"websocket" json:"websocket"`
	Chat       ChatConfig       `toml:"chat" json:"chat"`
	Completion CompletionConfig `toml:"completion" json:"completion"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Logging    LoggingConfig    `toml:"logging" json:"logging"`
	UI         UIConfig         `toml:"ui" json:"ui"`

	// Warnings lists non-fatal problems found while loading. Callers log
	// them once a logger exists; nothing here writes to the terminal.
	Warnings []string `toml:"-" json:"-"`
}

// BackendConfig locates the REST backend.
type BackendConfig struct {
	APIURL string `toml:"api_url" json:"api_url"`
	// TimeoutSecs bounds every REST request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// Timeout returns the REST request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// WebSocketConfig controls the real-time connection.
type WebSocketConfig struct {
	URL string `toml:"url" json:"url"`
	// AutoConnect forces a connection attempt even when ShouldAutoConnect
	// would decide against it.
	AutoConnect          bool `toml:"auto_connect" json:"auto_connect"`
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
	BaseDelayMs          int  `toml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMs           int  `toml:"max_delay_ms" json:"max_delay_ms"`
}

// BaseDelay returns the first reconnect delay.
func (w WebSocketConfig) BaseDelay() time.Duration {
	return time.Duration(w.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the reconnect delay cap.
func (w WebSocketConfig) MaxDelay() time.Duration {
	return time.Duration(w.MaxDelayMs) * time.Millisecond
}

// ChatConfig controls message delivery.
type ChatConfig struct {
	// PendingTimeoutMs is how long an optimistic message may stay unconfirmed.
	PendingTimeoutMs int `toml:"pending_timeout_ms" json:"pending_timeout_ms"`
	// TypingDebounceMs is how long after the last keystroke typing stops.
	TypingDebounceMs int `toml:"typing_debounce_ms" json:"typing_debounce_ms"`
	// FallbackToAI streams a completion when the backend cannot take a message.
	FallbackToAI bool `toml:"fallback_to_ai" json:"fallback_to_ai"`
}

// PendingTimeout returns the optimistic-send timeout.
func (c ChatConfig) PendingTimeout() time.Duration {
	return time.Duration(c.PendingTimeoutMs) * time.Millisecond
}

// TypingDebounce returns the typing indicator debounce.
func (c ChatConfig) TypingDebounce() time.Duration {
	return time.Duration(c.TypingDebounceMs) * time.Millisecond
}

// CompletionConfig configures both the completion client and the proxy.
type CompletionConfig struct {
	// ChatURL is the data-stream endpoint the client talks to.
	ChatURL string `toml:"chat_url" json:"chat_url"`
	// OpenAIKey is used by the proxy, and by the client when no proxy is reachable.
	OpenAIKey     string  `toml:"openai_api_key" json:"openai_api_key"`
	OpenAIBaseURL string  `toml:"openai_base_url" json:"openai_base_url"`
	Model         string  `toml:"model" json:"model"`
	Temperature   float64 `toml:"temperature" json:"temperature"`
	MaxTokens     int     `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt  string  `toml:"system_prompt" json:"system_prompt"`
	TimeoutSecs   int     `toml:"timeout_secs" json:"timeout_secs"`
}

// Timeout returns the completion request timeout.
func (c CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures "stellarchat serve".
type ServerConfig struct {
	Listen         string   `toml:"listen" json:"listen"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// RateLimit is requests per second per client IP; Burst is the bucket size.
	RateLimit       float64 `toml:"rate_limit" json:"rate_limit"`
	Burst           int     `toml:"burst" json:"burst"`
	MaxBodyBytes    int64   `toml:"max_body_bytes" json:"max_body_bytes"`
	MaxMessageChars int     `toml:"max_message_chars" json:"max_message_chars"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives JSON log lines. Empty means ~/.stellarchat/stellarchat.log.
	File string `toml:"file" json:"file"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Markdown renders assistant replies through glamour.
	Markdown bool `toml:"markdown" json:"markdown"`
	AltScreen bool `toml:"alt_screen" json:"alt_screen"`
	Mouse     bool `toml:"mouse" json:"mouse"`
}

// Default returns a configuration with every value set to its default.
func Default() *Config {
	return &Config{
		Version: "1",
		Env:     "production",
		Backend: BackendConfig{
			APIURL:      DefaultAPIURL,
			TimeoutSecs: 10,
		},
		WebSocket: WebSocketConfig{
			URL:                  DefaultWebSocketURL,
			MaxReconnectAttempts: 3,
			BaseDelayMs:          1000,
			MaxDelayMs:           10000,
		},
		Chat: ChatConfig{
			PendingTimeoutMs: 5000,
			TypingDebounceMs: 1500,
			FallbackToAI:     true,
		},
		Completion: CompletionConfig{
			ChatURL:      DefaultChatURL,
			Model:        DefaultModel,
			Temperature:  0.7,
			MaxTokens:    500,
			SystemPrompt: DefaultSystemPrompt,
			TimeoutSecs:  60,
		},
		Server: ServerConfig{
			Listen:          ":3000",
			AllowedOrigins:  []string{"*"},
			RateLimit:       2,
			Burst:           10,
			MaxBodyBytes:    1 << 20,
			MaxMessageChars: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Markdown:  true,
			AltScreen: true,
			Mouse:     true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the stellarchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".stellarchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600; it may hold an API
// key. It returns the previous mode when it had to change it.
func ensureSecurePermissions(path string) (os.FileMode, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	mode := info.Mode().Perm()
	if mode == 0600 {
		return mode, false, nil
	}
	if err := os.Chmod(path, 0600); err != nil {
		return mode, false, fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
	}
	return mode, true, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.stellarchat/config.toml (if present), then .env and the
// environment on top of it.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		return finish(cfg)
	}
	cfg, err := LoadFromPath(path)
	if errors.Is(err, ErrNoConfigFile) {
		return finish(Default())
	}
	return cfg, err
}

// LoadFromPath loads the TOML file at path and applies .env and environment
// overrides. A missing file yields ErrNoConfigFile.
func LoadFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfigFile, path)
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path into cfg. Keys missing from the file keep the value
// cfg already had.
func LoadTOML(cfg *Config, path string) error {
	if mode, fixed, err := ensureSecurePermissions(path); err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("could not ensure secure permissions on %s: %v", path, err))
	} else if fixed {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("config file %s had permissions %o, tightened to 600", path, mode))
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// fillDefaults restores defaults for values a partial file zeroed out.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Env == "" {
		cfg.Env = defaults.Env
	}

	// Backend
	if cfg.Backend.APIURL == "" {
		cfg.Backend.APIURL = defaults.Backend.APIURL
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}

	// WebSocket
	if cfg.WebSocket.URL == "" {
		cfg.WebSocket.URL = defaults.WebSocket.URL
	}
	if cfg.WebSocket.BaseDelayMs == 0 {
		cfg.WebSocket.BaseDelayMs = defaults.WebSocket.BaseDelayMs
	}
	if cfg.WebSocket.MaxDelayMs == 0 {
		cfg.WebSocket.MaxDelayMs = defaults.WebSocket.MaxDelayMs
	}

	// Chat
	if cfg.Chat.PendingTimeoutMs == 0 {
		cfg.Chat.PendingTimeoutMs = defaults.Chat.PendingTimeoutMs
	}
	if cfg.Chat.TypingDebounceMs == 0 {
		cfg.Chat.TypingDebounceMs = defaults.Chat.TypingDebounceMs
	}

	// Completion
	if cfg.Completion.ChatURL == "" {
		cfg.Completion.ChatURL = defaults.Completion.ChatURL
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = defaults.Completion.Model
	}
	if cfg.Completion.SystemPrompt == "" {
		cfg.Completion.SystemPrompt = defaults.Completion.SystemPrompt
	}
	if cfg.Completion.TimeoutSecs == 0 {
		cfg.Completion.TimeoutSecs = defaults.Completion.TimeoutSecs
	}

	// Server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = defaults.Server.RateLimit
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if cfg.Server.MaxMessageChars == 0 {
		cfg.Server.MaxMessageChars = defaults.Server.MaxMessageChars
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
}

// =============================================================================
// ENVIRONMENT AND FLAG OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - STELLARCHAT_API_URL: overrides backend.api_url
//   - STELLARCHAT_WS_URL: overrides websocket.url
//   - STELLARCHAT_CHAT_URL: overrides completion.chat_url
//   - STELLARCHAT_ENV: overrides env
//   - STELLARCHAT_LISTEN: overrides server.listen
//   - STELLARCHAT_LOG_LEVEL: overrides logging.level
//   - STELLARCHAT_FALLBACK_TO_AI: overrides chat.fallback_to_ai
//   - OPENAI_API_KEY: overrides completion.openai_api_key
//   - OPENAI_MODEL: overrides completion.model
//   - OPENAI_BASE_URL: overrides completion.openai_base_url
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STELLARCHAT_API_URL"); v != "" {
		c.Backend.APIURL = v
	}
	if v := os.Getenv("STELLARCHAT_WS_URL"); v != "" {
		c.WebSocket.URL = v
	}
	if v := os.Getenv("STELLARCHAT_CHAT_URL"); v != "" {
		c.Completion.ChatURL = v
	}
	if v := os.Getenv("STELLARCHAT_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("STELLARCHAT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("STELLARCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STELLARCHAT_FALLBACK_TO_AI"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.FallbackToAI = b
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Completion.OpenAIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Completion.OpenAIBaseURL = v
	}
}

// Overrides carries command line flags. Empty fields leave the config alone.
type Overrides struct {
	APIURL   string
	WSURL    string
	ChatURL  string
	Listen   string
	LogLevel string
}

// Apply applies o to c and revalidates.
func (o Overrides) Apply(c *Config) error {
	if o.APIURL != "" {
		c.Backend.APIURL = o.APIURL
	}
	if o.WSURL != "" {
		c.WebSocket.URL = o.WSURL
	}
	if o.ChatURL != "" {
		c.Completion.ChatURL = o.ChatURL
	}
	if o.Listen != "" {
		c.Server.Listen = o.Listen
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	return c.Validate()
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# stellarchat configuration file\n")
	buf.WriteString("# Environment variables (STELLARCHAT_*, OPENAI_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate returns every problem found in c as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := checkURL(c.Backend.APIURL, "http", "https"); err != nil {
		add("backend.api_url", "%v", err)
	}
	if err := checkURL(c.WebSocket.URL, "ws", "wss"); err != nil {
		add("websocket.url", "%v", err)
	}
	if err := checkURL(c.Completion.ChatURL, "http", "https"); err != nil {
		add("completion.chat_url", "%v", err)
	}
	if c.Completion.OpenAIBaseURL != "" {
		if err := checkURL(c.Completion.OpenAIBaseURL, "http", "https"); err != nil {
			add("completion.openai_base_url", "%v", err)
		}
	}

	if c.Backend.TimeoutSecs <= 0 {
		add("backend.timeout_secs", "must be positive, got %d", c.Backend.TimeoutSecs)
	}
	if c.Completion.TimeoutSecs <= 0 {
		add("completion.timeout_secs", "must be positive, got %d", c.Completion.TimeoutSecs)
	}
	if c.Chat.PendingTimeoutMs <= 0 {
		add("chat.pending_timeout_ms", "must be positive, got %d", c.Chat.PendingTimeoutMs)
	}
	if c.Chat.TypingDebounceMs <= 0 {
		add("chat.typing_debounce_ms", "must be positive, got %d", c.Chat.TypingDebounceMs)
	}
	if c.WebSocket.BaseDelayMs <= 0 {
		add("websocket.base_delay_ms", "must be positive, got %d", c.WebSocket.BaseDelayMs)
	}
	if c.WebSocket.MaxDelayMs < c.WebSocket.BaseDelayMs {
		add("websocket.max_delay_ms", "must be >= base_delay_ms (%d), got %d", c.WebSocket.BaseDelayMs, c.WebSocket.MaxDelayMs)
	}
	if c.WebSocket.MaxReconnectAttempts < 0 {
		add("websocket.max_reconnect_attempts", "must not be negative, got %d", c.WebSocket.MaxReconnectAttempts)
	}

	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		add("completion.temperature", "must be between 0 and 2, got %g", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens < 0 {
		add("completion.max_tokens", "must not be negative, got %d", c.Completion.MaxTokens)
	}

	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative, got %g", c.Server.RateLimit)
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative, got %d", c.Server.MaxBodyBytes)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL '%s': %w", raw, err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			if u.Host == "" {
				return fmt.Errorf("URL '%s' has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("URL '%s' must use one of: %s", raw, strings.Join(schemes, ", "))
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Warnings = append([]string(nil), c.Warnings...)
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String renders the configuration as JSON with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Completion.OpenAIKey != "" {
		safe.Completion.OpenAIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
