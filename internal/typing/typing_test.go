// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type recorder struct {
	mu     sync.Mutex
	events []bool
	ch     chan bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan bool, 16)}
}

func (r *recorder) onChange(v bool) {
	r.mu.Lock()
	r.events = append(r.events, v)
	r.mu.Unlock()
	r.ch <- v
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestStart_NotifiesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder()
	d := New(rec.onChange, time.Hour)
	defer d.Close()

	d.Start()
	d.Start()
	d.Start()

	assert.True(t, d.IsTyping())
	assert.Equal(t, []bool{true}, rec.snapshot())
}

func TestExpiry_StopsTyping(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder()
	d := New(rec.onChange, 20*time.Millisecond)
	defer d.Close()

	d.Start()
	<-rec.ch

	select {
	case v := <-rec.ch:
		assert.False(t, v)
	case <-time.After(time.Second):
		t.Fatal("typing never expired")
	}
	assert.False(t, d.IsTyping())
}

func TestStart_RearmsTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder()
	d := New(rec.onChange, 80*time.Millisecond)
	defer d.Close()

	d.Start()
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		d.Start()
	}
	// 160ms have passed since the first keystroke, but never 80ms of silence.
	assert.True(t, d.IsTyping())
	assert.Equal(t, []bool{true}, rec.snapshot())
}

func TestStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder()
	d := New(rec.onChange, time.Hour)
	defer d.Close()

	d.Stop()
	assert.Empty(t, rec.snapshot(), "Stop while idle is silent")

	d.Start()
	d.Stop()
	assert.False(t, d.IsTyping())
	assert.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestClose_SuppressesExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newRecorder()
	d := New(rec.onChange, 10*time.Millisecond)

	d.Start()
	d.Close()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []bool{true}, rec.snapshot())
	d.Start()
	assert.Equal(t, []bool{true}, rec.snapshot(), "Start after Close is ignored")
}

func TestNew_Defaults(t *testing.T) {
	d := New(nil, 0)
	assert.Equal(t, DefaultDebounce, d.debounce)
	d.Start()
	d.Stop()
	d.Close()
}
