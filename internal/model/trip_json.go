package model

import "encoding/json"

// marshalUnoptimizedTrip renders the shared wire shape for both
// UnoptimizedTrip and OptimizedTrip: starting_point/final_point plus the
// interior waypoints, with legs/geometry included only when present.
func marshalUnoptimizedTrip(waypoints []Waypoint, legs []Leg, geometry Polyline) ([]byte, error) {
	out := map[string]any{
		"starting_point": waypoints[0],
		"final_point":    waypoints[len(waypoints)-1],
		"waypoints":      waypoints[1 : len(waypoints)-1],
	}
	if legs != nil {
		out["legs"] = legs
		out["geometry"] = string(geometry)
	}
	return json.Marshal(out)
}

// unoptimizedTripWire is the inbound wire shape accepted from JSON-RPC
// params for the trip / trip.async methods.
type unoptimizedTripWire struct {
	StartingPoint Waypoint   `json:"starting_point"`
	FinalPoint    Waypoint   `json:"final_point"`
	Waypoints     []Waypoint `json:"waypoints"`
}

// UnmarshalJSON parses the wire shape into an UnoptimizedTrip.
func (t *UnoptimizedTrip) UnmarshalJSON(data []byte) error {
	var wire unoptimizedTripWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	trip, err := NewUnoptimizedTrip(wire.StartingPoint, wire.Waypoints, wire.FinalPoint)
	if err != nil {
		return err
	}
	*t = trip
	return nil
}
