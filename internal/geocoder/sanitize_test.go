package geocoder

import "testing"

func TestSanitizeKeepsPolishDiacritics(t *testing.T) {
	cases := map[string]string{
		"Łódzka":         "Łódzka",
		"Świętokrzyska":  "Świętokrzyska",
		"Żabia 12A":      "Żabia 12A",
		"Poznańska/Ósma": "Poznańska/Ósma",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeBlanksQueryLanguageMetacharacters(t *testing.T) {
	cases := map[string]string{
		`Lipowa" OR 1=1; --`: "Lipowa  OR 1 1  --",
		"street*":             "street ",
		"a&b|c":               "a b c",
	}
	for in, want := range cases {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeKeepsAllowedPunctuation(t *testing.T) {
	in := "al. Jana Pawła II / 3-5"
	if got := sanitize(in); got != in {
		t.Errorf("sanitize(%q) = %q, want unchanged", in, got)
	}
}

func TestSanitizePtrNilSafe(t *testing.T) {
	if sanitizePtr(nil) != nil {
		t.Error("expected a nil pointer to pass through unchanged")
	}
	s := "Łódzka"
	got := sanitizePtr(&s)
	if got == nil || *got != "Łódzka" {
		t.Errorf("unexpected result: %+v", got)
	}
}
