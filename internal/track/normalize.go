package track

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes an item name for equality comparison. Names that
// cross the bus pick up incidental whitespace and control characters, so
// comparisons trim, strip non-printing runes and case-fold first. This is
// the single authoritative matching rule for marker/list reconciliation.
func Normalize(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, name)
	return strings.ToLower(strings.TrimSpace(cleaned))
}
