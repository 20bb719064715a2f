// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for stellarchat.
//
// Configuration is layered, each layer overriding the previous one:
//   - Built-in defaults (Default)
//   - ~/.stellarchat/config.toml
//   - a .env file in the working directory (joho/godotenv)
//   - environment variables (STELLARCHAT_*, OPENAI_*)
//   - command line flags (Overrides)
//
// # Key Types
//
//   - Config: Main configuration structure
//   - BackendConfig: REST backend location and request timeout
//   - WebSocketConfig: real-time connection and reconnect policy
//   - ChatConfig: optimistic-send timeout, typing debounce, AI fallback
//   - CompletionConfig: completion proxy and model parameters
//   - ServerConfig: the /api/chat proxy listener
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.Backend.APIURL, cfg.Backend.Timeout())
//
// Watch reloads the file whenever it is written:
//
//	go config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
