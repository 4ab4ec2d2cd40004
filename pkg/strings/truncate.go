// Package strings holds small text helpers for terminal output.
package strings

import (
	"strings"
)

// DefaultColumnWidth is the widest free-text column printed in tables.
const DefaultColumnWidth = 60

// minWidth leaves room for one character plus the ellipsis.
const minWidth = 4

// Truncate collapses whitespace in s to single spaces and shortens the
// result to at most width runes, ending it with "..." when cut. Widths
// below 4 are raised to 4.
func Truncate(s string, width int) string {
	if width < minWidth {
		width = minWidth
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > width {
		return string(runes[:width-3]) + "..."
	}
	return s
}
