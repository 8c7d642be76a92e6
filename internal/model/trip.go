package model

import (
	"fmt"
)

// Waypoint is one stop on a trip.
type Waypoint struct {
	Building    Building `json:"building"`
	Phone       *string  `json:"phone,omitempty"`
	InputMethod *string  `json:"input_method,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

// Cost is a leg or trip's travel cost.
type Cost struct {
	DistanceMeters int64 `json:"distance_meters"`
	DurationSecs   int64 `json:"duration_seconds"`
}

// Add returns the element-wise sum of two costs.
func (c Cost) Add(o Cost) Cost {
	return Cost{
		DistanceMeters: c.DistanceMeters + o.DistanceMeters,
		DurationSecs:   c.DurationSecs + o.DurationSecs,
	}
}

// Leg is one edge of an optimized trip.
type Leg struct {
	FromBuilding int64 `json:"from_building"`
	ToBuilding   int64 `json:"to_building"`
	Cost         Cost  `json:"cost"`
}

// UnoptimizedTrip is an ordered sequence of >= 3 waypoints with designated
// first (starting) and last (final) entries.
type UnoptimizedTrip struct {
	Waypoints []Waypoint `json:"-"`
}

// NewUnoptimizedTrip merges starting/intermediate/final waypoints into a
// single ordered sequence, mirroring the original's constructor shape.
func NewUnoptimizedTrip(starting Waypoint, intermediate []Waypoint, final Waypoint) (UnoptimizedTrip, error) {
	waypoints := make([]Waypoint, 0, len(intermediate)+2)
	waypoints = append(waypoints, starting)
	waypoints = append(waypoints, intermediate...)
	waypoints = append(waypoints, final)

	if len(waypoints) < 3 {
		return UnoptimizedTrip{}, fmt.Errorf("trip: need at least 3 waypoints, got %d", len(waypoints))
	}
	return UnoptimizedTrip{Waypoints: waypoints}, nil
}

// Roundtrip reports whether the final waypoint's building equals the
// starting waypoint's building, by id.
func (t UnoptimizedTrip) Roundtrip() bool {
	return t.Starting().Building.ID == t.Final().Building.ID
}

func (t UnoptimizedTrip) Starting() Waypoint { return t.Waypoints[0] }
func (t UnoptimizedTrip) Final() Waypoint    { return t.Waypoints[len(t.Waypoints)-1] }

// MarshalJSON implements the wire shape: starting_point/final_point plus
// the interior waypoints only (the duplicated start/end entries are
// excluded from the "waypoints" array).
func (t UnoptimizedTrip) MarshalJSON() ([]byte, error) {
	return marshalUnoptimizedTrip(t.Waypoints, nil, Polyline(""))
}

// OptimizedTrip is an UnoptimizedTrip plus its engine-assigned visit order,
// per-leg costs, and a serialized route geometry.
type OptimizedTrip struct {
	UnoptimizedTrip
	Legs     []Leg
	Geometry Polyline
}

// Polyline is an opaque, serialized route geometry string.
type Polyline string

// NewOptimizedTrip reorders original's waypoints in place so that original
// waypoint i ends up at position permutation[i], and assigns
// from/to_building on each leg. permutation has
// length == len(waypoints) for open trips, or len(waypoints)-1 for
// roundtrips (the engine omits the return to the start).
//
// The reorder is an O(n), allocation-free in-place cycle walk — this
// property must be preserved; do not rebuild the sequence via a second
// allocation.
func NewOptimizedTrip(original UnoptimizedTrip, permutation []int, legs []Leg, geometry Polyline) (OptimizedTrip, error) {
	n := len(original.Waypoints)
	expected := len(permutation)
	if original.Roundtrip() {
		expected++
	}
	if expected != n {
		return OptimizedTrip{}, fmt.Errorf("trip: permutation length %d does not match %d waypoints (roundtrip=%v)",
			len(permutation), n, original.Roundtrip())
	}
	if len(legs) != n-1 {
		return OptimizedTrip{}, fmt.Errorf("trip: leg count %d, want %d", len(legs), n-1)
	}

	waypoints := original.Waypoints
	order := make([]int, len(permutation))
	copy(order, permutation)

	for i := 0; i < len(order); i++ {
		for i != order[i] {
			alt := order[i]
			waypoints[i], waypoints[alt] = waypoints[alt], waypoints[i]
			order[i], order[alt] = order[alt], order[i]
		}
	}

	for i := range legs {
		toIx := i + 1
		if original.Roundtrip() && i == len(legs)-1 {
			toIx = 0
		}
		legs[i].FromBuilding = waypoints[i].Building.ID
		legs[i].ToBuilding = waypoints[toIx].Building.ID
	}

	return OptimizedTrip{
		UnoptimizedTrip: UnoptimizedTrip{Waypoints: waypoints},
		Legs:            legs,
		Geometry:        geometry,
	}, nil
}

// TotalCost sums leg costs element-wise.
func (t OptimizedTrip) TotalCost() Cost {
	var total Cost
	for _, leg := range t.Legs {
		total = total.Add(leg.Cost)
	}
	return total
}

// MarshalJSON implements the wire shape: the unoptimized trip's fields plus
// legs and geometry.
func (t OptimizedTrip) MarshalJSON() ([]byte, error) {
	return marshalUnoptimizedTrip(t.Waypoints, t.Legs, t.Geometry)
}
