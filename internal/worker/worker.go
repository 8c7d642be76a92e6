// Package worker implements the worker pool that drains the async trip
// scheduler and runs each trip request through the routing engine pool.
package worker

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"github.com/trasaroute/trasaroute/internal/logging"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/routing"
	"github.com/trasaroute/trasaroute/internal/scheduler"
)

// PollEmptyBackoff is how long a worker sleeps after finding no pending
// trip request before polling again.
const PollEmptyBackoff = 2 * time.Second

// Scheduler is the subset of scheduler.Scheduler a worker needs.
type Scheduler interface {
	PollTripRequest(ctx context.Context) (*scheduler.TripRequest, error)
	CompleteTrip(ctx context.Context, meta model.TripMetadata) error
	DiscardTrip(ctx context.Context, meta model.TripMetadata) error
}

// Store is the subset of store.Store a worker needs.
type Store interface {
	Put(ctx context.Context, rec model.TripRecord) error
}

// Pool runs Concurrency goroutines, each an infinite poll-process loop.
type Pool struct {
	scheduler   Scheduler
	routingPool *routing.Pool
	store       Store
	logger      *logging.Logger
	concurrency int
}

// Config sizes the worker pool: hardware_concurrency * worker_concurrency
// goroutines per node, matching the spec's worker-count formula.
type Config struct {
	WorkerConcurrency int
}

// New builds a worker pool of runtime.NumCPU() * cfg.WorkerConcurrency
// workers.
func New(sched Scheduler, routingPool *routing.Pool, store Store, logger *logging.Logger, cfg Config) *Pool {
	n := runtime.NumCPU() * cfg.WorkerConcurrency
	if n < 1 {
		n = 1
	}
	return &Pool{scheduler: sched, routingPool: routingPool, store: store, logger: logger, concurrency: n}
}

// Run starts all worker goroutines and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.logger.WithService("worker").With("worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := p.scheduler.PollTripRequest(ctx)
		if err != nil {
			log.WithError(err).Error("poll failed")
			p.sleep(ctx, PollEmptyBackoff)
			continue
		}
		if req == nil {
			p.sleep(ctx, PollEmptyBackoff)
			continue
		}

		p.process(ctx, *req, log)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// process runs one trip end to end. A routing or marshalling failure falls
// through to the failed path; a failure to persist a record is logged and
// the message is left unacknowledged for queue redelivery. A worker never
// re-queues and never surfaces an error to a caller.
func (p *Pool) process(ctx context.Context, req scheduler.TripRequest, log *logging.Logger) {
	optimized, err := p.routingPool.OptimizeTrip(ctx, req.Trip, req.Meta.Region)
	if err != nil {
		p.fail(ctx, req.Meta, err, log)
		return
	}

	rec, err := readyRecord(req.Meta, optimized)
	if err != nil {
		p.fail(ctx, req.Meta, err, log)
		return
	}

	if err := p.store.Put(ctx, rec); err != nil {
		log.WithError(err).Error("failed to persist ready record; leaving message for redelivery")
		return
	}

	if err := p.scheduler.CompleteTrip(ctx, req.Meta); err != nil {
		log.WithError(err).Error("failed to complete message after persisting ready record")
	}
}

func (p *Pool) fail(ctx context.Context, meta model.TripMetadata, cause error, log *logging.Logger) {
	rec := model.TripRecord{
		ID:        derefOr(meta.ID, ""),
		Timestamp: time.Now(),
		AccountID: meta.AccountID,
		Status:    model.TripFailed,
		Region:    meta.Region,
		Error:     cause.Error(),
	}
	if err := p.store.Put(ctx, rec); err != nil {
		log.WithError(err).Error("failed to persist failed record; leaving message for redelivery")
		return
	}
	if err := p.scheduler.DiscardTrip(ctx, meta); err != nil {
		log.WithError(err).Error("failed to discard message after persisting failed record")
	}
}

func readyRecord(meta model.TripMetadata, optimized model.OptimizedTrip) (model.TripRecord, error) {
	responseJSON, err := json.Marshal(optimized)
	if err != nil {
		return model.TripRecord{}, err
	}
	total := optimized.TotalCost()
	distance, duration := total.DistanceMeters, total.DurationSecs
	return model.TripRecord{
		ID:           derefOr(meta.ID, ""),
		Timestamp:    time.Now(),
		AccountID:    meta.AccountID,
		Status:       model.TripReady,
		Region:       meta.Region,
		ResponseJSON: string(responseJSON),
		Geometry:     string(optimized.Geometry),
		Distance:     &distance,
		Duration:     &duration,
	}, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
