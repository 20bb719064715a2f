// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// Error is returned for any non-2xx backend response.
type Error struct {
	Status     int
	StatusText string
	Endpoint   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("API request failed: %d %s", e.Status, e.StatusText)
}

// ErrEmptyMessage is returned by SendMessage for blank content.
var ErrEmptyMessage = errors.New("message content is empty")

// ErrInvalidResponse wraps backend payloads that decode but fail
// validation. It is never a network error.
var ErrInvalidResponse = errors.New("invalid backend response")

func invalidResponse(endpoint string, item int, err error) error {
	return fmt.Errorf("%w: %s item %d: %w", ErrInvalidResponse, endpoint, item, err)
}

// IsNetworkError reports whether err comes from the transport rather than
// from a backend response: refused connections, DNS failures, resets and
// timeouts. A nil error is not a network error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
