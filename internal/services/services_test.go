package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/routing"
)

type fakeEngine struct {
	distanceCost routing.TravelCost
	distanceErr  error
}

func (e *fakeEngine) OptimizeTrip(ctx context.Context, trip model.UnoptimizedTrip) (model.OptimizedTrip, error) {
	legs := make([]model.Leg, len(trip.Waypoints)-1)
	permutation := make([]int, len(trip.Waypoints))
	for i := range permutation {
		permutation[i] = i
	}
	if trip.Roundtrip() {
		permutation = permutation[:len(permutation)-1]
	}
	return model.NewOptimizedTrip(trip, permutation, legs, model.Polyline("geom"))
}

func (e *fakeEngine) Distance(ctx context.Context, from, to geo.Point) (routing.TravelCost, error) {
	return e.distanceCost, e.distanceErr
}

func podlaskieLocator(t *testing.T) *geo.Locator {
	t.Helper()
	region := geo.Region{
		Name: "podlaskie",
		Polygon: geo.Polygon{Points: []geo.Point{
			{Lat: 52.8, Lng: 22.5},
			{Lat: 52.8, Lng: 23.8},
			{Lat: 53.9, Lng: 23.8},
			{Lat: 53.9, Lng: 22.5},
			{Lat: 52.8, Lng: 22.5},
		}},
	}
	locator, err := geo.NewLocator([]geo.Region{region})
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return locator
}

func waypointJSON(id int64, lat, lng float64) map[string]any {
	return map[string]any{
		"building": map[string]any{"id": id, "coords": map[string]any{"latitude": lat, "longitude": lng}},
	}
}

func TestTripSynchronousRejectsMalformedJSON(t *testing.T) {
	trip := &Trip{Locator: podlaskieLocator(t), RoutingPool: routing.NewPool(nil)}
	_, err := trip.Synchronous(context.Background(), RequestContext{UID: "u1"}, json.RawMessage(`{not json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestTripSynchronousRejectsMissingRequiredFields(t *testing.T) {
	trip := &Trip{Locator: podlaskieLocator(t), RoutingPool: routing.NewPool(nil)}
	_, err := trip.Synchronous(context.Background(), RequestContext{UID: "u1"}, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected an error when starting_point/final_point are missing")
	}
}

func TestTripSynchronousRejectsTooManyWaypoints(t *testing.T) {
	trip := &Trip{Locator: podlaskieLocator(t), RoutingPool: routing.NewPool(nil), MaxWaypoints: 2}
	params := map[string]any{
		"starting_point": waypointJSON(1, 53.1, 23.1),
		"waypoints":      []any{waypointJSON(2, 53.2, 23.2)},
		"final_point":    waypointJSON(3, 53.3, 23.3),
	}
	raw, _ := json.Marshal(params)

	_, err := trip.Synchronous(context.Background(), RequestContext{UID: "u1"}, raw)
	if err == nil {
		t.Fatal("expected an error when the trip exceeds MaxWaypoints")
	}
}

func TestTripSynchronousRejectsOutOfRegionWaypoint(t *testing.T) {
	trip := &Trip{Locator: podlaskieLocator(t), RoutingPool: routing.NewPool(nil), MaxWaypoints: 10}
	params := map[string]any{
		"starting_point": waypointJSON(1, 53.1, 23.1),
		"waypoints":      []any{waypointJSON(3, 53.15, 23.15)},
		"final_point":    waypointJSON(2, 10.0, 10.0), // far outside podlaskie
	}
	raw, _ := json.Marshal(params)

	_, err := trip.Synchronous(context.Background(), RequestContext{UID: "u1"}, raw)
	if err == nil {
		t.Fatal("expected an error for a waypoint outside every region")
	}
}

func TestTripSynchronousOptimizesWithinRegion(t *testing.T) {
	pool := routing.NewPool(map[string]routing.Engine{"podlaskie": &fakeEngine{}})
	trip := &Trip{Locator: podlaskieLocator(t), RoutingPool: pool, MaxWaypoints: 10}
	params := map[string]any{
		"starting_point": waypointJSON(1, 53.1, 23.1),
		"waypoints":      []any{waypointJSON(3, 53.15, 23.15)},
		"final_point":    waypointJSON(2, 53.2, 23.2),
	}
	raw, _ := json.Marshal(params)

	opt, err := trip.Synchronous(context.Background(), RequestContext{UID: "u1"}, raw)
	if err != nil {
		t.Fatalf("Synchronous: %v", err)
	}
	if opt.Geometry != "geom" {
		t.Errorf("expected the fake engine's geometry to pass through, got %q", opt.Geometry)
	}
}

func TestDistanceCalculateRejectsCrossRegion(t *testing.T) {
	locator := podlaskieLocator(t)
	d := &Distance{Locator: locator, RoutingPool: routing.NewPool(nil)}

	raw, _ := json.Marshal(map[string]any{
		"from": map[string]any{"latitude": 53.1, "longitude": 23.1},
		"to":   map[string]any{"latitude": 10.0, "longitude": 10.0},
	})

	_, err := d.Calculate(context.Background(), raw)
	if err == nil {
		t.Fatal("expected an error when 'to' resolves outside every region")
	}
}

func TestDistanceCalculateWithinRegion(t *testing.T) {
	pool := routing.NewPool(map[string]routing.Engine{"podlaskie": &fakeEngine{distanceCost: routing.TravelCost{Meters: 500, Seconds: 60}}})
	d := &Distance{Locator: podlaskieLocator(t), RoutingPool: pool}

	raw, _ := json.Marshal(map[string]any{
		"from": map[string]any{"latitude": 53.1, "longitude": 23.1},
		"to":   map[string]any{"latitude": 53.2, "longitude": 23.2},
	})

	cost, err := d.Calculate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if cost.Meters != 500 || cost.Seconds != 60 {
		t.Errorf("unexpected cost: %+v", cost)
	}
}
