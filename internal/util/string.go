// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strings"

// Truncate truncates a string to maxLen runes, adding "..." if truncated.
// Uses rune-based truncation for proper Unicode handling.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// HumanizeField turns a snake_case backend field name into a section title:
// "weird_field" becomes "Weird field".
func HumanizeField(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
