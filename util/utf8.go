package util

import (
	"unicode/utf8"
)

// TruncateUTF8 cuts s to at most maxChars characters, never splitting a multi-byte character
//
// Invalid bytes count as one character each
func TruncateUTF8(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	numChars := 0
	for i := 0; i < len(s); {
		if numChars == maxChars {
			return s[:i]
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		numChars++
	}
	return s
}
