// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// Truncate cuts s so that it occupies at most width terminal columns,
// appending an ellipsis when something was removed. Wide runes (CJK, most
// emoji) count as two columns.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return Ellipsis
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight pads s with spaces up to width columns. Longer strings are
// truncated first.
func PadRight(s string, width int) string {
	s = Truncate(s, width)
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

// Initials returns the first rune of every word in title, the way avatar
// fallbacks are drawn ("Ana Silva" -> "AS").
func Initials(title string) string {
	var b strings.Builder
	for _, word := range strings.Fields(title) {
		r, _ := utf8.DecodeRuneInString(word)
		if r != utf8.RuneError {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SingleLine collapses newlines and runs of whitespace so a message can be
// shown as a one-line preview.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
