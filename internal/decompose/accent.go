package decompose

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// polishFold maps Polish diacritics to their unaccented ASCII equivalent,
// matching the sqlite_fts backend's NO_PL_ACCENTS collation.
var polishFold = map[rune]rune{
	'ą': 'a', 'Ą': 'A',
	'ć': 'c', 'Ć': 'C',
	'ę': 'e', 'Ę': 'E',
	'ł': 'l', 'Ł': 'L',
	'ń': 'n', 'Ń': 'N',
	'ó': 'o', 'Ó': 'O',
	'ś': 's', 'Ś': 'S',
	'ź': 'z', 'Ź': 'Z',
	'ż': 'z', 'Ż': 'Z',
}

// FoldAccents produces the normalized (lowercased, diacritic-folded) form
// stored alongside a building's alt_street/alt_city columns to support
// accent-insensitive matching (§6 FTS schema).
//
// mode selects the folding table: "polish" (the default, matching the
// original's fixed table) or "unicode", which instead runs a Unicode
// NFD-then-strip-combining-marks pipeline — the resolution to the spec's
// multi-locale Open Question, built on golang.org/x/text/unicode/norm since
// no locale-aware folding library is otherwise present in the example
// corpus.
func FoldAccents(s, mode string) string {
	s = strings.ToLower(s)
	if mode == "unicode" {
		return foldUnicode(s)
	}
	return foldPolish(s)
}

func foldPolish(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if folded, ok := polishFold[r]; ok {
			b.WriteRune(unicode.ToLower(folded))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func foldUnicode(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) { // combining mark
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
