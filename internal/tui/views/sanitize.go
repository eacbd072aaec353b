package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops what the server may send but tcell cannot draw
// sanely: control characters other than newline and tab (escape sequences
// included), and the emoji combining codepoints that make tview miscount
// cell widths.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || isCombiningEmoji(r) {
			return -1
		}
		return r
	}, s)
}

func isCombiningEmoji(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	default:
		return false
	}
}
