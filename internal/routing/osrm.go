package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/logging"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/resilience"
)

// HTTPEngine talks to one region's OSRM-compatible "trip" and "route" HTTP
// services through a resilience.ResilientHTTPClient: a per-instance circuit
// breaker plus a small fixed retry budget with exponential backoff.
type HTTPEngine struct {
	region  string
	baseURL string
	client  *resilience.ResilientHTTPClient
}

// HTTPEngineConfig configures one region's engine endpoint.
type HTTPEngineConfig struct {
	Region           string
	BaseURL          string
	Timeout          time.Duration
	MaxRetries       int
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultHTTPEngineConfig returns production defaults for a given endpoint.
func DefaultHTTPEngineConfig(region, baseURL string) HTTPEngineConfig {
	return HTTPEngineConfig{
		Region:           region,
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		MaxRetries:       2,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// NewHTTPEngine builds an engine client for one region. Breaker state
// transitions are logged tagged with the region, since an OSRM instance
// tripping its breaker in one region says nothing about the others.
func NewHTTPEngine(cfg HTTPEngineConfig, logger *logging.Logger) *HTTPEngine {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	name := fmt.Sprintf("routing_engine:%s:%s", cfg.Region, baseURL)
	return &HTTPEngine{
		region:  cfg.Region,
		baseURL: baseURL,
		client: resilience.NewResilientHTTPClient(resilience.ResilientHTTPClientConfig{
			Name:       name,
			Timeout:    cfg.Timeout,
			Retries:    cfg.MaxRetries,
			RetryDelay: 100 * time.Millisecond,
			CircuitBreakerConfig: &resilience.CircuitBreakerConfig{
				Name:             name,
				FailureThreshold: cfg.FailureThreshold,
				SuccessThreshold: 2,
				Timeout:          cfg.ResetTimeout,
				MaxRequests:      3,
				OnStateChange: func(breakerName string, from, to resilience.CircuitState) {
					if logger == nil {
						return
					}
					logger.WithService("routing").With("region", cfg.Region, "breaker", breakerName).
						Warn("circuit breaker state change", "from", from.String(), "to", to.String())
				},
			},
		}),
	}
}

// BreakerMetrics reports this region's circuit breaker state, surfaced
// through the routing pool's aggregate health check.
func (e *HTTPEngine) BreakerMetrics() resilience.CircuitBreakerMetrics {
	return e.client.Metrics()
}

type osrmTripResponse struct {
	Code   string `json:"code"`
	Message string `json:"message"`
	Trips  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"trips"`
	Waypoints []struct {
		WaypointIndex int `json:"waypoint_index"`
		TripsIndex    int `json:"trips_index"`
	} `json:"waypoints"`
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// OptimizeTrip marshals waypoints to the engine's trip service. For
// roundtrips the engine is told destination=any and any trailing duplicate
// of the starting coordinate the caller included is stripped before the
// call; for open trips destination=last. overview=full, source=first
// throughout.
func (e *HTTPEngine) OptimizeTrip(ctx context.Context, trip model.UnoptimizedTrip) (model.OptimizedTrip, error) {
	roundtrip := trip.Roundtrip()
	coords := make([]geo.Point, len(trip.Waypoints))
	for i, w := range trip.Waypoints {
		coords[i] = w.Building.Coords
	}
	if roundtrip {
		// the engine omits the return leg; drop the duplicated final stop.
		coords = coords[:len(coords)-1]
	}

	destination := "last"
	if roundtrip {
		destination = "any"
	}

	url := fmt.Sprintf("%s/trip/v1/driving/%s?overview=full&source=first&destination=%s&roundtrip=%t",
		e.baseURL, encodeCoords(coords), destination, roundtrip)

	var parsed osrmTripResponse
	if err := e.getJSON(ctx, url, &parsed); err != nil {
		return model.OptimizedTrip{}, err
	}
	if !strings.EqualFold(parsed.Code, "ok") || len(parsed.Trips) == 0 {
		return model.OptimizedTrip{}, fmt.Errorf("trip optimization failed: code=%s message=%s", parsed.Code, parsed.Message)
	}

	// waypoints come back in input order; waypoint_index is each one's
	// position in the optimized trip.
	permutation := make([]int, len(parsed.Waypoints))
	for i, wp := range parsed.Waypoints {
		if wp.WaypointIndex < 0 || wp.WaypointIndex >= len(permutation) {
			return model.OptimizedTrip{}, fmt.Errorf("trip optimization: waypoint_index %d out of range", wp.WaypointIndex)
		}
		permutation[i] = wp.WaypointIndex
	}

	engineTrip := parsed.Trips[0]
	legs := make([]model.Leg, len(engineTrip.Legs))
	for i, l := range engineTrip.Legs {
		legs[i] = model.Leg{Cost: model.Cost{
			DistanceMeters: int64(l.Distance),
			DurationSecs:   int64(l.Duration),
		}}
	}

	return model.NewOptimizedTrip(trip, permutation, legs, model.Polyline(engineTrip.Geometry))
}

// Distance queries the engine's point-to-point route service.
func (e *HTTPEngine) Distance(ctx context.Context, from, to geo.Point) (TravelCost, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%s?overview=false", e.baseURL, encodeCoords([]geo.Point{from, to}))

	var parsed osrmRouteResponse
	if err := e.getJSON(ctx, url, &parsed); err != nil {
		return TravelCost{}, err
	}
	if !strings.EqualFold(parsed.Code, "ok") || len(parsed.Routes) == 0 {
		return TravelCost{}, fmt.Errorf("distance query failed: code=%s", parsed.Code)
	}
	r := parsed.Routes[0]
	return TravelCost{Meters: int64(r.Distance), Seconds: int64(r.Duration)}, nil
}

func encodeCoords(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%f,%f", p.Lng, p.Lat)
	}
	return strings.Join(parts, ";")
}

func (e *HTTPEngine) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if err == resilience.ErrCircuitOpen {
			return errCircuitOpen
		}
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, out)
}
