package parser

import "strings"

// ZapGremlins removes control characters other than tab, line feed and
// carriage return, and the non-characters U+FFFE and U+FFFF.
func ZapGremlins(s string) string {
	return strings.Map(func(r rune) rune {
		if isGremlin(r) {
			return -1
		}
		return r
	}, s)
}

func isGremlin(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	}
	return false
}
