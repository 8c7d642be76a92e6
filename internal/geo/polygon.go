package geo

// Polygon is a simple closed ring of coordinates.
type Polygon struct {
	Points []Point
}

// Contains tests point-in-polygon membership by ray casting. Grounded on
// the teacher's geo.Polygon.Contains.
func (p Polygon) Contains(pt Point) bool {
	if len(p.Points) < 3 {
		return false
	}

	inside := false
	n := len(p.Points)

	j := n - 1
	for i := 0; i < n; i++ {
		pi := p.Points[i]
		pj := p.Points[j]

		if ((pi.Lat > pt.Lat) != (pj.Lat > pt.Lat)) &&
			(pt.Lng < (pj.Lng-pi.Lng)*(pt.Lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lng) {
			inside = !inside
		}
		j = i
	}

	return inside
}

// BoundingBox returns the envelope of the polygon's points.
func (p Polygon) BoundingBox() BoundingBox {
	if len(p.Points) == 0 {
		return BoundingBox{}
	}

	box := BoundingBox{
		MinLat: p.Points[0].Lat, MaxLat: p.Points[0].Lat,
		MinLng: p.Points[0].Lng, MaxLng: p.Points[0].Lng,
	}
	for _, pt := range p.Points[1:] {
		if pt.Lat < box.MinLat {
			box.MinLat = pt.Lat
		}
		if pt.Lat > box.MaxLat {
			box.MaxLat = pt.Lat
		}
		if pt.Lng < box.MinLng {
			box.MinLng = pt.Lng
		}
		if pt.Lng > box.MaxLng {
			box.MaxLng = pt.Lng
		}
	}
	return box
}

// NonEmpty reports whether the polygon carries at least a valid ring.
func (p Polygon) NonEmpty() bool {
	return len(p.Points) >= 3
}
