package frontend

import (
	"context"
	"encoding/json"

	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/services"
)

var errBadTripPollParams = errs.BadRequest("malformed trip.poll params")

// Services is the set of bound service objects the front end dispatches
// JSON-RPC calls to.
type Services struct {
	Trip     *services.Trip
	Geocode  *services.Geocode
	Distance *services.Distance
}

// BuildServiceMap binds the "trip", "trip.async", "trip.poll", "geocode",
// and "distance" JSON-RPC methods to the corresponding service object.
func BuildServiceMap(svc Services) ServiceMap {
	return ServiceMap{
		"trip": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return svc.Trip.Synchronous(ctx, rc, params)
		},
		"trip.async": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return svc.Trip.Async(ctx, rc, params)
		},
		"trip.poll": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			var p struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, errBadTripPollParams
			}
			return svc.Trip.Poll(ctx, rc, p.ID)
		},
		"geocode": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return svc.Geocode.Lookup(ctx, params)
		},
		"distance": func(ctx context.Context, rc requestContext, params json.RawMessage) (any, error) {
			return svc.Distance.Calculate(ctx, params)
		},
	}
}
