package addressbook

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"1;23.142;53.132;PL;Bialystok;15-001;Lipowa;1",
		"2;23.150;53.140;PL;Bialystok;15-002;Sienkiewicza;12A",
		"",
		"3;;53.140;PL;Bialystok;15-003;Missing Coord;1",
		"4;23.150;;PL;Bialystok;15-003;Missing Coord;1",
		"5;23.150;53.140;PL;;15-003;Missing City;1",
		"6;23.150;53.140;PL;Bialystok;15-003;;1",
		"7;23.150;53.140;PL;Bialystok;15-003;Missing Number;",
		"8;not-a-number;53.140;PL;Bialystok;15-003;Bad Lng;1",
		"9;23.150;not-a-number;PL;Bialystok;15-003;Bad Lat;1",
		"not-an-id;23.150;53.140;PL;Bialystok;15-003;Bad Id;1",
	}, "\n")

	buildings, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(buildings) != 2 {
		t.Fatalf("expected 2 valid buildings, got %d: %+v", len(buildings), buildings)
	}

	b := buildings[0]
	if b.ID != 1 || b.Street != "Lipowa" || b.Number != "1" || b.City != "Bialystok" {
		t.Errorf("unexpected first row: %+v", b)
	}
	if b.Coords.Lat != 53.132 || b.Coords.Lng != 23.142 {
		t.Errorf("unexpected coordinates: %+v", b.Coords)
	}

	b = buildings[1]
	if b.ID != 2 || b.Number != "12A" {
		t.Errorf("unexpected second row: %+v", b)
	}
}

func TestParseCSVRejectsShortRows(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("1;23.142;53.132;PL;Bialystok"))
	if err == nil {
		t.Fatal("expected an error for a row with too few fields")
	}
}

func TestParseCSVEmpty(t *testing.T) {
	buildings, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(buildings) != 0 {
		t.Errorf("expected no buildings, got %d", len(buildings))
	}
}
