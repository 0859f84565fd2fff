package qa

import (
	"strings"
	"unicode/utf8"
)

// ellipsis marks a truncated preview.
const ellipsis = "…"

// ToPreview bounds text to max bytes without splitting a rune. When
// the cut point has a space beyond the minimum offset the preview
// breaks on that word boundary. Returns the preview and whether
// truncation occurred.
func ToPreview(text string, max int) (string, bool) {
	t := strings.TrimSpace(text)
	if len(t) <= max {
		return t, false
	}

	slice := cutAtRune(t, max)
	// keep at least ~4/7 of the budget before cutting on a word
	// boundary (400 of the default 700)
	if lastSpace := strings.LastIndex(slice, " "); lastSpace > max*4/7 {
		slice = slice[:lastSpace]
	}
	return slice + ellipsis, true
}

// cutAtRune truncates s to at most n bytes, backing up so the cut
// never lands inside a multi-byte rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
