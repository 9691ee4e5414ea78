package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate canonicalizes recognized plate text for matching: letters
// uppercased, everything that is not a letter or digit removed. Thai glyphs
// have no case and pass through unchanged.
func NormalizePlate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// SanitizeName reduces text to a string safe for file and directory names:
// letters, digits, dash and underscore survive, spaces are removed, anything
// else is dropped. Returns "Unknown" when nothing survives.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Unknown"
	}
	return b.String()
}
