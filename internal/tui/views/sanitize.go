package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops runes that tcell cannot lay out or that would
// reach the terminal as control sequences. Message text comes from other
// users, so escape and other control characters are removed too; newlines
// and tabs stay.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !dropRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero width joiner.
	case r == 0x200D:
		return true
	// Variation selectors.
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	case r == unicode.ReplacementChar:
		return true
	default:
		return false
	}
}
