package brand

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMark matches the Combining Diacritical Marks block (U+0300–U+036F)
// left behind by canonical decomposition.
var combiningMark = runes.Predicate(func(r rune) bool {
	return r >= 0x0300 && r <= 0x036f
})

// Token folds s into the comparison key used for alias matching: diacritics
// are stripped, letters lower-cased and everything outside [a-z0-9] dropped.
func Token(s string) string {
	if !isASCII(s) {
		// transform.Chain keeps internal state, so it is built per call.
		folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(combiningMark)), s)
		if err == nil {
			s = folded
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
