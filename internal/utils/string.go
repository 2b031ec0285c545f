package utils

import "unicode/utf8"

// Truncate shortens s to at most max runes, appending "..." when anything was cut
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
