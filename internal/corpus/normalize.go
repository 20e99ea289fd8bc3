package corpus

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeNewlines rewrites CRLF and bare CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return s
}

// NFC returns the canonical composition of s. Kannada vowel signs that have
// both a precomposed and a decomposed form (ೀ, ೇ, ೈ, ೊ, ೋ) then train to the
// same byte sequence.
func NFC(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}

	return norm.NFC.String(s)
}
