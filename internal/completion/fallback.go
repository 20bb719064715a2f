// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"

	"go.uber.org/zap"

	"github.com/stellarchat/stellarchat-tui/internal/api"
	"github.com/stellarchat/stellarchat-tui/internal/logging"
)

// Fallback tries Primary and switches to Secondary when Primary cannot be
// reached before producing any output.
type Fallback struct {
	Primary   Streamer
	Secondary Streamer
	Logger    *zap.Logger
}

// Stream implements Streamer.
func (f *Fallback) Stream(ctx context.Context, turns []Turn, onToken func(string)) (string, error) {
	started := false
	track := func(tok string) {
		started = true
		if onToken != nil {
			onToken(tok)
		}
	}

	out, err := f.Primary.Stream(ctx, turns, track)
	if err == nil || started || f.Secondary == nil || !api.IsNetworkError(err) {
		return out, err
	}

	logging.OrNop(f.Logger).Info("completion proxy unreachable, calling OpenAI directly", zap.Error(err))
	return f.Secondary.Stream(ctx, turns, onToken)
}

// Options select which streamers New assembles.
type Options struct {
	ChatURL       string
	OpenAIKey     string
	OpenAIBaseURL string
	Settings      Settings
	Logger        *zap.Logger
}

// New returns the proxy client, chained to a Direct client when an API key
// is available.
func New(opts Options) Streamer {
	proxy := NewClient(opts.ChatURL)
	direct, err := NewDirect(opts.OpenAIKey, opts.OpenAIBaseURL, opts.Settings)
	if err != nil {
		return proxy
	}
	return &Fallback{Primary: proxy, Secondary: direct, Logger: opts.Logger}
}
