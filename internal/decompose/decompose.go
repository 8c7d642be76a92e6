// Package decompose splits a free-text address into labeled components.
//
// The actual character-level labeling is delegated to an external named
// entity recognizer (out of scope here, specified only by its input/output
// shape via the Labeler interface); this package owns the span-extraction
// algorithm, the override/heuristic pipeline, and accent folding.
package decompose

import (
	"unicode/utf8"
)

// Label identifies an address component a character can be tagged with.
type Label int

const (
	LabelOther Label = iota
	LabelCity
	LabelStreet
	LabelBuilding
	LabelZipcode
)

// Labeler is the external NER contract: given text, it returns one Label
// per rune in the string, in rune order.
type Labeler interface {
	Label(text string) ([]Label, error)
}

// Components holds the (possibly partial) decomposed address.
type Components struct {
	City     *string
	Street   *string
	Building *string
	Zipcode  *string
}

// Decompose asks labeler for a per-rune labeling of text and extracts the
// four components via the first/last-occurrence span rule: the span for
// label L is text[firstL..lastL], where firstL/lastL are the first and last
// rune positions labeled L — intervening characters labeled otherwise are
// included verbatim (this is what lets a misclassified separator character
// survive inside a component).
func Decompose(labeler Labeler, text string) (Components, error) {
	labels, err := labeler.Label(text)
	if err != nil {
		return Components{}, err
	}

	runes := []rune(text)
	extract := func(label Label) *string {
		first, last := -1, -1
		for i, l := range labels {
			if l == label {
				if first == -1 {
					first = i
				}
				last = i
			}
		}
		if first == -1 {
			return nil
		}
		s := string(runes[first : last+1])
		return &s
	}

	return Components{
		City:     extract(LabelCity),
		Street:   extract(LabelStreet),
		Building: extract(LabelBuilding),
		Zipcode:  extract(LabelZipcode),
	}, nil
}

// ApplyOverrides replaces any component present in overrides, regardless of
// the decomposed value. Overrides are applied before PracticalAdjust.
func ApplyOverrides(c Components, overrides Components) Components {
	if overrides.City != nil {
		c.City = overrides.City
	}
	if overrides.Street != nil {
		c.Street = overrides.Street
	}
	if overrides.Building != nil {
		c.Building = overrides.Building
	}
	if overrides.Zipcode != nil {
		c.Zipcode = overrides.Zipcode
	}
	return c
}

// PracticalAdjust reassigns city to street when city is the only populated
// component. When a user has typed only a single word, the decomposer
// prefers street candidates over city candidates. Identity otherwise.
func PracticalAdjust(c Components) Components {
	onlyCityCaptured := c.Building == nil && c.Zipcode == nil &&
		c.City != nil && c.Street == nil

	if onlyCityCaptured {
		c.Street = c.City
		c.City = nil
	}
	return c
}

// RuneLen is a small helper kept for callers validating labeler output
// length against the source text.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
