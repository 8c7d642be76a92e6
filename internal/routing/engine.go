// Package routing provides the per-region routing engine pool and its
// HTTP-backed engine client.
package routing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/resilience"
	"github.com/trasaroute/trasaroute/internal/telemetry"
)

// TravelCost is the result of a distance query.
type TravelCost struct {
	Meters  int64 `json:"meters"`
	Seconds int64 `json:"seconds"`
}

// Engine is one region's bound routing-engine instance: an OSRM-compatible
// HTTP service fronting that region's preprocessed map data.
type Engine interface {
	OptimizeTrip(ctx context.Context, trip model.UnoptimizedTrip) (model.OptimizedTrip, error)
	Distance(ctx context.Context, from, to geo.Point) (TravelCost, error)
}

// Pool routes optimize_trip/distance calls to the engine instance bound to
// a request's region. Built once at startup; the map itself is read-only
// after construction and needs no synchronization (only the circuit-breaker
// state inside each Engine mutates at runtime).
type Pool struct {
	instances map[string]Engine
}

// NewPool builds a pool from a region-name -> engine mapping.
func NewPool(instances map[string]Engine) *Pool {
	cp := make(map[string]Engine, len(instances))
	for k, v := range instances {
		cp[k] = v
	}
	return &Pool{instances: cp}
}

func (p *Pool) engine(region string) (Engine, error) {
	e, ok := p.instances[region]
	if !ok {
		return nil, errs.InvalidArgument(fmt.Sprintf("no routing engine bound to region %q", region))
	}
	return e, nil
}

// OptimizeTrip dispatches to the region's engine.
func (p *Pool) OptimizeTrip(ctx context.Context, trip model.UnoptimizedTrip, region string) (model.OptimizedTrip, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "routing.OptimizeTrip", trace.WithAttributes(attribute.String("region", region)))
	defer span.End()

	e, err := p.engine(region)
	if err != nil {
		span.RecordError(err)
		return model.OptimizedTrip{}, err
	}
	opt, err := e.OptimizeTrip(ctx, trip)
	if err != nil {
		span.RecordError(err)
		return model.OptimizedTrip{}, errs.ServerErrorWrap(err, "routing_error")
	}
	return opt, nil
}

// Distance dispatches to region's engine for a point-to-point cost.
func (p *Pool) Distance(ctx context.Context, from, to geo.Point, region string) (TravelCost, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "routing.Distance", trace.WithAttributes(attribute.String("region", region)))
	defer span.End()

	e, err := p.engine(region)
	if err != nil {
		span.RecordError(err)
		return TravelCost{}, err
	}
	cost, err := e.Distance(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return TravelCost{}, errs.ServerErrorWrap(err, "routing_error")
	}
	return cost, nil
}

var errCircuitOpen = fmt.Errorf("routing engine circuit open")

// breakerObserver is implemented by engines backed by a resilient HTTP
// client; it lets Pool report per-region breaker state without widening
// the Engine interface every engine implementation must satisfy.
type breakerObserver interface {
	BreakerMetrics() resilience.CircuitBreakerMetrics
}

// BreakerMetrics returns the circuit breaker state of every bound engine
// that tracks one, keyed by region. Engines that don't expose breaker
// state (e.g. a test double) are silently omitted.
func (p *Pool) BreakerMetrics() map[string]resilience.CircuitBreakerMetrics {
	out := make(map[string]resilience.CircuitBreakerMetrics, len(p.instances))
	for region, e := range p.instances {
		if o, ok := e.(breakerObserver); ok {
			out[region] = o.BreakerMetrics()
		}
	}
	return out
}
