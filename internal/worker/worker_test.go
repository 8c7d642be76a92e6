package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/logging"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/routing"
	"github.com/trasaroute/trasaroute/internal/scheduler"
)

type fakeScheduler struct {
	mu       sync.Mutex
	requests []scheduler.TripRequest
	next     int
	completed []model.TripMetadata
	discarded []model.TripMetadata
}

func (s *fakeScheduler) PollTripRequest(ctx context.Context) (*scheduler.TripRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.requests) {
		return nil, nil
	}
	req := s.requests[s.next]
	s.next++
	return &req, nil
}

func (s *fakeScheduler) CompleteTrip(ctx context.Context, meta model.TripMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, meta)
	return nil
}

func (s *fakeScheduler) DiscardTrip(ctx context.Context, meta model.TripMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = append(s.discarded, meta)
	return nil
}

type fakeStore struct {
	mu  sync.Mutex
	put []model.TripRecord
}

func (s *fakeStore) Put(ctx context.Context, rec model.TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put = append(s.put, rec)
	return nil
}

type fakeEngine struct {
	err error
}

func (e *fakeEngine) OptimizeTrip(ctx context.Context, trip model.UnoptimizedTrip) (model.OptimizedTrip, error) {
	if e.err != nil {
		return model.OptimizedTrip{}, e.err
	}
	legs := make([]model.Leg, len(trip.Waypoints)-1)
	permutation := make([]int, len(trip.Waypoints))
	for i := range permutation {
		permutation[i] = i
	}
	return model.NewOptimizedTrip(trip, permutation, legs, model.Polyline("geom"))
}

func (e *fakeEngine) Distance(ctx context.Context, from, to geo.Point) (routing.TravelCost, error) {
	return routing.TravelCost{}, nil
}

func tripRequest(region, account string) scheduler.TripRequest {
	id := "trip-1"
	receipt := "receipt-1"
	waypoints := []model.Waypoint{
		{Building: model.Building{ID: 1, Coords: geo.Point{Lat: 53.1, Lng: 23.1}}},
		{Building: model.Building{ID: 2, Coords: geo.Point{Lat: 53.2, Lng: 23.2}}},
	}
	return scheduler.TripRequest{
		Trip: model.UnoptimizedTrip{Waypoints: waypoints},
		Meta: model.TripMetadata{ID: &id, ReceiptHandle: &receipt, Region: region, AccountID: account},
	}
}

func TestWorkerProcessPersistsReadyRecordAndCompletes(t *testing.T) {
	sched := &fakeScheduler{requests: []scheduler.TripRequest{tripRequest("podlaskie", "acct-1")}}
	st := &fakeStore{}
	pool := routing.NewPool(map[string]routing.Engine{"podlaskie": &fakeEngine{}})
	p := &Pool{scheduler: sched, routingPool: pool, store: st, logger: logging.NewLogger("error")}

	req, err := sched.PollTripRequest(context.Background())
	if err != nil || req == nil {
		t.Fatalf("PollTripRequest: %+v, %v", req, err)
	}
	p.process(context.Background(), *req, p.logger)

	if len(st.put) != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", len(st.put))
	}
	if st.put[0].Status != model.TripReady {
		t.Errorf("expected a ready record, got status %q", st.put[0].Status)
	}
	if len(sched.completed) != 1 {
		t.Errorf("expected CompleteTrip to be called once, got %d", len(sched.completed))
	}
	if len(sched.discarded) != 0 {
		t.Errorf("expected DiscardTrip not to be called, got %d calls", len(sched.discarded))
	}
}

func TestWorkerProcessFailsOverOnRoutingError(t *testing.T) {
	sched := &fakeScheduler{}
	st := &fakeStore{}
	pool := routing.NewPool(map[string]routing.Engine{})
	p := &Pool{scheduler: sched, routingPool: pool, store: st, logger: logging.NewLogger("error")}

	req := tripRequest("unknown-region", "acct-1")
	p.process(context.Background(), req, p.logger)

	if len(st.put) != 1 {
		t.Fatalf("expected exactly one persisted record, got %d", len(st.put))
	}
	if st.put[0].Status != model.TripFailed {
		t.Errorf("expected a failed record, got status %q", st.put[0].Status)
	}
	if st.put[0].Error == "" {
		t.Error("expected the failed record to carry the routing error")
	}
	if len(sched.discarded) != 1 {
		t.Errorf("expected DiscardTrip to be called once, got %d", len(sched.discarded))
	}
	if len(sched.completed) != 0 {
		t.Errorf("expected CompleteTrip not to be called, got %d calls", len(sched.completed))
	}
}

func TestNewSizesPoolByConcurrency(t *testing.T) {
	sched := &fakeScheduler{}
	st := &fakeStore{}
	pool := routing.NewPool(nil)
	p := New(sched, pool, st, logging.NewLogger("error"), Config{WorkerConcurrency: 2})
	if p.concurrency < 2 {
		t.Errorf("expected at least 2 workers, got %d", p.concurrency)
	}
}
