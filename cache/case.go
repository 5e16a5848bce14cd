package cache

import (
	"strings"
	"unicode"
)

// DefaultPrefix derives the cache key namespace for a method that declares a
// cache directive without an explicit prefix.
func DefaultPrefix(contract, method string) string {
	return toSnake(contract) + KeySeparator + toSnake(method)
}

// toSnake converts an identifier to snake_case. Punctuation that can leak in
// from type names is collapsed to underscores; keys with stray characters
// would break prefix-based deletion and are rejected by some backends.
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/2)

	prevUnderscore := true // suppress a leading underscore
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			boundary := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1])))
			if boundary && !prevUnderscore {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevUnderscore = false
		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
