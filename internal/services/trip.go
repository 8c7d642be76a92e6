// Package services implements the JSON-RPC methods bound to the front
// end's service map: trip, trip.async, trip.poll, geocode, distance.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/geocoder"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/routing"
	"github.com/trasaroute/trasaroute/internal/scheduler"
	"github.com/trasaroute/trasaroute/internal/store"
)

// validate is a single shared validator instance; struct-tag validation is
// stateless and safe for concurrent use.
var validate = validator.New()

// RequestContext is the per-call identity derived from the bearer token at
// the front end, threaded into every service method.
type RequestContext struct {
	UID string
	IDP string
}

// Trip exposes the trip/trip.async/trip.poll methods.
type Trip struct {
	Locator      *geo.Locator
	RoutingPool  *routing.Pool
	Scheduler    *scheduler.Scheduler
	Store        *store.Store
	MaxWaypoints int
}

type tripParams struct {
	StartingPoint model.Waypoint   `json:"starting_point" validate:"required"`
	FinalPoint    model.Waypoint   `json:"final_point" validate:"required"`
	Waypoints     []model.Waypoint `json:"waypoints" validate:"omitempty,dive"`
}

func (t *Trip) parseAndValidate(rc RequestContext, raw json.RawMessage) (model.UnoptimizedTrip, model.TripMetadata, error) {
	var params tripParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.BadRequest("malformed trip params")
	}
	if err := validate.Struct(params); err != nil {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.BadRequest(err.Error())
	}

	trip, err := model.NewUnoptimizedTrip(params.StartingPoint, params.Waypoints, params.FinalPoint)
	if err != nil {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.BadRequest(err.Error())
	}

	if t.MaxWaypoints > 0 && len(trip.Waypoints) > t.MaxWaypoints {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.InvalidArgument("too many waypoints")
	}

	region, ok := t.Locator.Locate(trip.Starting().Building.Coords)
	if !ok {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.InvalidArgument("unsupported_location")
	}
	for _, w := range trip.Waypoints {
		r, ok := t.Locator.Locate(w.Building.Coords)
		if !ok || r.Name != region.Name {
			return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.InvalidArgument("waypoint outside trip region")
		}
	}

	id, err := model.NewSyncTripID()
	if err != nil {
		return model.UnoptimizedTrip{}, model.TripMetadata{}, errs.ServerErrorWrap(err, "server_error")
	}
	meta := model.TripMetadata{
		ID:        &id,
		Region:    region.Name,
		AccountID: rc.UID,
		CreatedAt: time.Now(),
	}
	return trip, meta, nil
}

// Synchronous implements the "trip" method: validate, route, return the
// optimized trip immediately.
func (t *Trip) Synchronous(ctx context.Context, rc RequestContext, raw json.RawMessage) (model.OptimizedTrip, error) {
	trip, meta, err := t.parseAndValidate(rc, raw)
	if err != nil {
		return model.OptimizedTrip{}, err
	}
	optimized, err := t.RoutingPool.OptimizeTrip(ctx, trip, meta.Region)
	if err != nil {
		return model.OptimizedTrip{}, err
	}
	return optimized, nil
}

// Async implements the "trip.async" method: validate, enqueue, return a
// promise.
func (t *Trip) Async(ctx context.Context, rc RequestContext, raw json.RawMessage) (model.TripPromise, error) {
	trip, meta, err := t.parseAndValidate(rc, raw)
	if err != nil {
		return model.TripPromise{}, err
	}
	return t.Scheduler.ScheduleTrip(ctx, trip, meta)
}

// pollResponse is the trip.poll response shape: a pending stub, or a
// projected ready/failed record.
type pollResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Trip     json.RawMessage `json:"trip,omitempty"`
	Distance *int64 `json:"distance,omitempty"`
	Duration *int64 `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Poll implements the "trip.poll" method.
func (t *Trip) Poll(ctx context.Context, rc RequestContext, tripID string) (pollResponse, error) {
	rec, err := t.Store.Get(ctx, tripID)
	if err == store.ErrNotFound {
		return pollResponse{ID: tripID, Status: string(model.TripPending)}, nil
	}
	if err != nil {
		return pollResponse{}, err
	}
	if rec.AccountID != rc.UID {
		return pollResponse{}, errs.NotAuthorized("")
	}

	resp := pollResponse{ID: rec.ID, Status: string(rec.Status), Distance: rec.Distance, Duration: rec.Duration, Error: rec.Error}
	if rec.ResponseJSON != "" {
		resp.Trip = json.RawMessage(rec.ResponseJSON)
	}
	return resp, nil
}

// Geocode exposes the geocode method.
type Geocode struct {
	Facade *geocoder.Facade
}

type geocodeParams struct {
	Text       string           `json:"text" validate:"required"`
	Location   geo.Point        `json:"location" validate:"required"`
	Mode       string           `json:"mode,omitempty"`
	Components geocodeOverrides `json:"components,omitempty"`
}

type geocodeOverrides struct {
	City     *string `json:"city,omitempty"`
	Street   *string `json:"street,omitempty"`
	Building *string `json:"building,omitempty"`
	Zipcode  *string `json:"zipcode,omitempty"`
}

// Lookup implements the "geocode" method.
func (g *Geocode) Lookup(ctx context.Context, raw json.RawMessage) (geocoder.LookupResult, error) {
	var params geocodeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return geocoder.LookupResult{}, errs.BadRequest("malformed geocode params")
	}
	if err := validate.Struct(params); err != nil {
		return geocoder.LookupResult{}, errs.BadRequest(err.Error())
	}
	overrides := geocoder.Components{
		City:     params.Components.City,
		Street:   params.Components.Street,
		Building: params.Components.Building,
		Zipcode:  params.Components.Zipcode,
	}
	return g.Facade.Lookup(ctx, params.Location, params.Text, overrides)
}

// Distance exposes the distance method.
type Distance struct {
	Locator     *geo.Locator
	RoutingPool *routing.Pool
}

type distanceParams struct {
	From geo.Point `json:"from" validate:"required"`
	To   geo.Point `json:"to" validate:"required"`
}

// Calculate implements the "distance" method.
func (d *Distance) Calculate(ctx context.Context, raw json.RawMessage) (routing.TravelCost, error) {
	var params distanceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return routing.TravelCost{}, errs.BadRequest("malformed distance params")
	}
	if err := validate.Struct(params); err != nil {
		return routing.TravelCost{}, errs.BadRequest(err.Error())
	}

	fromRegion, ok := d.Locator.Locate(params.From)
	if !ok {
		return routing.TravelCost{}, errs.BadRequest("unresolvable 'from' region")
	}
	toRegion, ok := d.Locator.Locate(params.To)
	if !ok {
		return routing.TravelCost{}, errs.BadRequest("unresolvable 'to' region")
	}
	if fromRegion.Name != toRegion.Name {
		return routing.TravelCost{}, errs.BadRequest("cross-region distance query")
	}

	return d.RoutingPool.Distance(ctx, params.From, params.To, fromRegion.Name)
}
