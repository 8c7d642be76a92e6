package geo

import (
	"strings"
	"testing"
)

func podlaskiePolygon() Polygon {
	// A rough bounding ring around the Białystok area, matching the
	// locate() end-to-end scenario from the specification.
	return Polygon{Points: []Point{
		{Lat: 52.8, Lng: 22.5},
		{Lat: 52.8, Lng: 23.8},
		{Lat: 53.5, Lng: 23.8},
		{Lat: 53.5, Lng: 22.5},
	}}
}

func TestLocator_MatchAndMiss(t *testing.T) {
	loc, err := NewLocator([]Region{{Name: "podlaskie", Polygon: podlaskiePolygon()}})
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}

	r, ok := loc.Locate(Point{Lat: 53.135278, Lng: 23.145556})
	if !ok || r.Name != "podlaskie" {
		t.Fatalf("expected podlaskie, got %+v, ok=%v", r, ok)
	}

	_, ok = loc.Locate(Point{Lat: 64.350823, Lng: 28.665475})
	if ok {
		t.Fatalf("expected no region match, got one")
	}
}

func TestLocator_DuplicateNameRejected(t *testing.T) {
	regions := []Region{
		{Name: "podlaskie", Polygon: podlaskiePolygon()},
		{Name: "podlaskie", Polygon: podlaskiePolygon()},
	}
	if _, err := NewLocator(regions); err == nil {
		t.Fatal("expected duplicate name to fail the build")
	}
}

func TestLocator_SoundnessAcrossNonOverlappingRegions(t *testing.T) {
	left := Polygon{Points: []Point{
		{Lat: 10, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: 20}, {Lat: 20, Lng: 10},
	}}
	right := Polygon{Points: []Point{
		{Lat: 10, Lng: 30}, {Lat: 10, Lng: 40}, {Lat: 20, Lng: 40}, {Lat: 20, Lng: 30},
	}}
	loc, err := NewLocator([]Region{{Name: "left", Polygon: left}, {Name: "right", Polygon: right}})
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}

	cases := []struct {
		pt   Point
		want string
		ok   bool
	}{
		{Point{Lat: 15, Lng: 15}, "left", true},
		{Point{Lat: 15, Lng: 35}, "right", true},
		{Point{Lat: 15, Lng: 25}, "", false},
	}
	for _, c := range cases {
		r, ok := loc.Locate(c.pt)
		if ok != c.ok || (ok && r.Name != c.want) {
			t.Errorf("Locate(%+v) = %+v, %v; want name=%q ok=%v", c.pt, r, ok, c.want, c.ok)
		}
	}
}

func TestParsePolyFile(t *testing.T) {
	doc := `województwo podlaskie
1
 23.0 53.0
 23.8 53.0
 23.8 53.5
 23.0 53.5
END
END
`
	poly, err := ParsePolyFile(strings.NewReader(doc), "województwo podlaskie")
	if err != nil {
		t.Fatalf("ParsePolyFile: %v", err)
	}
	if len(poly.Points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(poly.Points))
	}
	if poly.Points[0].Lng != 23.0 || poly.Points[0].Lat != 53.0 {
		t.Fatalf("coordinates not stored as (lat, lng): got %+v", poly.Points[0])
	}
}

func TestParsePolyFile_IgnoresOtherSubPolygons(t *testing.T) {
	doc := `neighbour
1
 1.0 1.0
 2.0 2.0
 3.0 3.0
END
END
target
1
 10.0 10.0
 11.0 10.0
 11.0 11.0
END
END
`
	poly, err := ParsePolyFile(strings.NewReader(doc), "target")
	if err != nil {
		t.Fatalf("ParsePolyFile: %v", err)
	}
	if len(poly.Points) != 3 {
		t.Fatalf("expected 3 points for target polygon, got %d: %+v", len(poly.Points), poly.Points)
	}
	for _, p := range poly.Points {
		if p.Lat < 10 {
			t.Fatalf("leaked a point from the neighbour sub-polygon: %+v", p)
		}
	}
}

func TestParsePolyFile_NotFound(t *testing.T) {
	doc := "other\n1\n 1.0 1.0\nEND\nEND\n"
	if _, err := ParsePolyFile(strings.NewReader(doc), "missing"); err == nil {
		t.Fatal("expected an error for a region not present in the file")
	}
}
