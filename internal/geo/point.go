// Package geo provides the geospatial primitives shared by the region
// locator, the geocoder backends, and the routing engine pool.
package geo

import (
	"encoding/json"
	"strconv"
)

// Point is a (latitude, longitude) pair in double-precision degrees.
//
// "Empty" means both fields are ≤ 0; equality between two points is
// bit-exact on both fields, not a distance threshold.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// IsEmpty reports whether both coordinates are non-positive.
func (p Point) IsEmpty() bool {
	return p.Lat <= 0 && p.Lng <= 0
}

// Equal is bit-exact equality, not a within-epsilon comparison.
func (p Point) Equal(o Point) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

// MarshalJSON renders coordinates with 8 decimal places as JSON numbers,
// matching the original implementation's stream formatting so
// round-tripped JSON stays byte-identical up to key ordering.
func (p Point) MarshalJSON() ([]byte, error) {
	return []byte(`{"latitude":` + strconv.FormatFloat(p.Lat, 'f', 8, 64) +
		`,"longitude":` + strconv.FormatFloat(p.Lng, 'f', 8, 64) + `}`), nil
}

// UnmarshalJSON parses the standard {latitude, longitude} numeric shape.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat float64 `json:"latitude"`
		Lng float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Lat, p.Lng = raw.Lat, raw.Lng
	return nil
}

// BoundingBox is an axis-aligned envelope over a set of points.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Contains reports whether p falls within the box, inclusive of the edges.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}
