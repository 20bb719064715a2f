// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package typing debounces keystrokes into typing-started / typing-stopped
// transitions.
package typing

import (
	"sync"
	"time"
)

// DefaultDebounce is how long typing lasts after the last keystroke.
const DefaultDebounce = time.Second

// Debouncer reports typing transitions through its callback. Start may be
// called on every keystroke; the callback only sees changes.
type Debouncer struct {
	onChange func(bool)
	debounce time.Duration

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	gen    uint64
	closed bool
}

// New creates a Debouncer. A debounce <= 0 uses DefaultDebounce; onChange
// may be nil.
func New(onChange func(isTyping bool), debounce time.Duration) *Debouncer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Debouncer{onChange: onChange, debounce: debounce}
}

// Start marks the user as typing and re-arms the stop timer.
func (d *Debouncer) Start() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	changed := !d.typing
	d.typing = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.debounce, func() { d.expire(gen) })
	d.mu.Unlock()

	if changed {
		d.onChange(true)
	}
}

// Stop ends typing immediately.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.cancelLocked()
	changed := d.typing
	d.typing = false
	d.mu.Unlock()

	if changed {
		d.onChange(false)
	}
}

// IsTyping reports the current state.
func (d *Debouncer) IsTyping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

// Close cancels the pending timer. No callback fires afterwards.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// expire runs on the timer goroutine; gen guards against a timer that was
// replaced or cancelled after it had already fired.
func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.closed || !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	d.onChange(false)
}
