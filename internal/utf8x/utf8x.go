// Package utf8x provides a small set of UTF-8 boundary helpers for
// safely truncating term strings and snippet text without splitting a
// multi-byte rune; no other package in this module imports it. There is no
// third-party replacement for this: it is a handful of lines over the
// standard library's unicode/utf8 decoding primitives, not a general
// text-processing concern.
package utf8x

import "unicode/utf8"

// CharLen returns the byte length of the UTF-8 rune starting at lead,
// given only its first byte. Returns 1 for continuation or invalid lead
// bytes so callers always advance.
func CharLen(lead byte) int {
	switch {
	case lead&0x80 == 0:
		return 1
	case lead&0xE0 == 0xC0:
		return 2
	case lead&0xF0 == 0xE0:
		return 3
	case lead&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// TruncateToRuneBoundary returns the longest prefix of s with byte length
// <= maxLen that ends on a rune boundary.
func TruncateToRuneBoundary(s string, maxLen int) string {
	if maxLen >= len(s) {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}

// NextRuneStart returns the byte offset of the first rune boundary at or
// after pos within s; returns len(s) if pos is already past the end.
func NextRuneStart(s string, pos int) int {
	if pos >= len(s) {
		return len(s)
	}
	for pos < len(s) && !utf8.RuneStart(s[pos]) {
		pos++
	}
	return pos
}
