// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat completion proxy used by the client when
// no other assistant is reachable.
//
// # Endpoints
//
//   - POST /api/chat - streams a completion in data-stream format
//   - GET  /health   - health check
//
// # Middleware
//
//   - Panic recovery
//   - Request logging through zap
//   - CORS for browser clients
//   - Per-IP token bucket rate limiting
//   - Request body size limit
//
// # Usage
//
//	srv, err := server.New(server.FromConfig(cfg), logger)
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
package server
