package util

import (
	"strings"
	"unicode"
)

const maxMessageLen = 300

// Sanitize normalizes an error or log message to a single bounded line.
//
// Messages built here end up in CSV cells and progress lines, so control
// characters and embedded newlines must not survive. Safe to call on any
// string, including upstream error text.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	out := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	out = strings.Join(strings.Fields(out), " ")
	if len(out) > maxMessageLen {
		out = out[:maxMessageLen] + "..."
	}
	return out
}
