// Package errfmt provides UTF-8-safe truncation for error replies, diagnostic
// lines, and captured terminal output.
package errfmt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLen caps error content sent back to the agent or logged.
const MaxLen = 4096

// Head caps s at limit bytes, backtracking to a valid UTF-8 boundary.
func Head(s string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

// Truncate caps a string at MaxLen bytes with UTF-8-safe truncation.
func Truncate(s string) string {
	return Head(s, MaxLen)
}

// Tail keeps at most limit bytes from the end of b. When bytes are dropped
// the cut advances to the next rune start, so the result never begins
// mid-character. The second return value reports whether anything was
// dropped. The returned slice reuses b's backing array.
func Tail(b []byte, limit int) ([]byte, bool) {
	if limit < 0 {
		limit = 0
	}
	if len(b) <= limit {
		return b, false
	}
	start := len(b) - limit
	for start < len(b) && !utf8.RuneStart(b[start]) {
		start++
	}
	return append(b[:0], b[start:]...), true
}

// Line prepares one line of agent diagnostics for logging: the trailing
// line break is removed, other control characters except tab are dropped,
// and the result is capped at MaxLen bytes.
func Line(s string) string {
	s = strings.TrimRight(s, "\r\n")
	s = strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return Truncate(s)
}
