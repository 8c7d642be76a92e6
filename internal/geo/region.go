package geo

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// Region is the immutable tuple (name, polygon).
type Region struct {
	Name    string
	Polygon Polygon
}

// Contains reports whether pt lies geometrically within the region.
func (r Region) Contains(pt Point) bool {
	return r.Polygon.Contains(pt)
}

// bboxResolution is the H3 resolution used to cover region envelopes.
// Resolution 4 cells are ~1,770 km² on average, coarse enough that a
// handful of cells cover even a large voivodeship-sized bounding box
// without candidate lists ballooning.
const bboxResolution = 4

// Locator is an immutable bag of regions plus a bounding-box pre-filter.
//
// The spec calls for "a bounding-box R-tree of their envelopes"; no R-tree
// library exists anywhere in the example corpus (see DESIGN.md), so the
// pre-filter is instead realized with an H3 cell-cover index over each
// region's envelope, grounded in the teacher's geo/h3.go. The H3 index
// only narrows candidates — locate() always finishes with the precise
// polygon containment test from Region.Contains, preserving the spec's
// soundness invariant regardless of how coarse or fine the H3 cover is.
type Locator struct {
	regions []Region
	index   map[h3.Cell][]int // cell -> region indices whose envelope covers it
}

// NewLocator builds a Locator from the given regions. Duplicate names fail
// the build with an invariant error, matching §4.1's Build contract.
func NewLocator(regions []Region) (*Locator, error) {
	seen := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("region locator: duplicate region name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if !r.Polygon.NonEmpty() {
			return nil, fmt.Errorf("region locator: region %q has an empty polygon", r.Name)
		}
	}

	l := &Locator{
		regions: regions,
		index:   make(map[h3.Cell][]int),
	}
	for i, r := range regions {
		for _, cell := range l.coverCells(r.Polygon.BoundingBox()) {
			l.index[cell] = append(l.index[cell], i)
		}
	}
	return l, nil
}

// coverCells returns the H3 cells covering a bounding box, found by
// sampling the box (corners included) on a 0.1° grid, finer than a
// resolution-4 cell, so every cell the envelope overlaps is a candidate
// (the precise test downstream never trusts the cover alone).
func (l *Locator) coverCells(box BoundingBox) []h3.Cell {
	var corners []Point
	for lat := box.MinLat; lat < box.MaxLat+0.1; lat += 0.1 {
		for lng := box.MinLng; lng < box.MaxLng+0.1; lng += 0.1 {
			corners = append(corners, Point{Lat: min(lat, box.MaxLat), Lng: min(lng, box.MaxLng)})
		}
	}

	seen := make(map[h3.Cell]struct{}, len(corners))
	cells := make([]h3.Cell, 0, len(corners))
	for _, c := range corners {
		cell := h3.LatLngToCell(h3.LatLng{Lat: c.Lat, Lng: c.Lng}, bboxResolution)
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		cells = append(cells, cell)
		// Also register the 1-ring neighborhood so a point near an
		// envelope edge still finds this region as a candidate even if
		// its own cell falls just outside the sampled grid points.
		for _, n := range h3.GridDisk(cell, 1) {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				cells = append(cells, n)
			}
		}
	}
	return cells
}

// Locate returns the region containing pt, or (Region{}, false) if none
// does. Ties are resolved by insertion order, matching §4.1.
func (l *Locator) Locate(pt Point) (Region, bool) {
	cell := h3.LatLngToCell(h3.LatLng{Lat: pt.Lat, Lng: pt.Lng}, bboxResolution)
	for _, idx := range l.index[cell] {
		if l.regions[idx].Contains(pt) {
			return l.regions[idx], true
		}
	}
	return Region{}, false
}

// Regions returns the full region set, in insertion order.
func (l *Locator) Regions() []Region {
	return l.regions
}
