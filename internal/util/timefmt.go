// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "time"

// FormatClock renders a 24h "HH:MM" timestamp in local time.
func FormatClock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04")
}

// FormatListTime renders the sidebar timestamp: the clock time when t is
// less than 24 hours before now, the day and month ("02/01") otherwise.
func FormatListTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < 24*time.Hour {
		return FormatClock(t)
	}
	return t.Local().Format("02/01")
}
