package geocoder

import (
	"strings"
	"unicode"
)

// sanitize replaces every character outside [letter, digit, space, '/',
// '-', '.'] with a space. Applied to every component before any backend
// dispatch — this defeats query-language injection in the FTS backend and
// is harmless to the in-memory backend. The letter/digit test is
// Unicode-aware (unicode.IsLetter/unicode.IsDigit, not an ASCII range), so
// Polish diacritics (ą, ć, ę, ł, ń, ó, ś, ź, ż) survive sanitize() intact
// for foldedTerm to fold downstream, matching the original's
// locale-aware std::isalnum(c, utf8).
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '/' || r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := sanitize(*s)
	return &out
}
